// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"fiscal-assistant/internal/assistant/llm"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/pkg/registry"
)

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)

	genPath := generateCmd.String("path", "configs/operation-registry.json", "Path to registry file")
	version := generateCmd.String("version", "1.0.0", "Registry version")
	validatePath := validateCmd.String("path", "configs/operation-registry.json", "Path to registry file")
	checkPath := checkCmd.String("path", "configs/operation-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd.Parse(os.Args[2:])
		reg, err := generate(*version)
		if err == nil {
			err = registry.SaveRegistry(reg, *genPath)
		}
		if err != nil {
			fmt.Printf("Error generating registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d operations to %s\n", len(reg.Operations), *genPath)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err == nil {
			err = reg.Validate()
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d operations.\n", len(reg.Operations))

	case "check":
		checkCmd.Parse(os.Args[2:])
		drift, err := check(*checkPath)
		if err != nil {
			fmt.Printf("Error checking registry: %v\n", err)
			os.Exit(1)
		}
		if len(drift) > 0 {
			fmt.Println("Registry is out of date with the intent catalog:")
			for _, d := range drift {
				fmt.Println("  " + d)
			}
			fmt.Println("Run 'registry-updater generate' to refresh it.")
			os.Exit(1)
		}
		fmt.Println("Registry matches the intent catalog.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func generate(version string) (*registry.OperationRegistry, error) {
	reg, err := llm.Registry(llm.Operations(intent.Catalog()), version, time.Now())
	if err != nil {
		return nil, err
	}
	return reg, reg.Validate()
}

// check reports operations that were added, removed or changed since the file was written.
func check(path string) ([]string, error) {
	published, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	current, err := generate(published.Version)
	if err != nil {
		return nil, err
	}
	return diff(published, current), nil
}

func diff(published, current *registry.OperationRegistry) []string {
	var drift []string
	for _, op := range current.Operations {
		old, ok := published.Find(op.Name)
		switch {
		case !ok:
			drift = append(drift, "missing: "+op.Name)
		case old.Intent != op.Intent || old.ReadOnly != op.ReadOnly ||
			old.RequiresConfirmation != op.RequiresConfirmation || old.Description != op.Description:
			drift = append(drift, "changed: "+op.Name)
		case !sameParameters(old.Parameters, op.Parameters):
			drift = append(drift, "parameters changed: "+op.Name)
		}
	}
	for _, op := range published.Operations {
		if _, ok := current.Find(op.Name); !ok {
			drift = append(drift, "removed: "+op.Name)
		}
	}
	sort.Strings(drift)
	return drift
}

func sameParameters(a, b map[string]interface{}) bool {
	pa, _ := a["properties"].(map[string]interface{})
	pb, _ := b["properties"].(map[string]interface{})
	if len(pa) != len(pb) {
		return false
	}
	for name := range pa {
		if _, ok := pb[name]; !ok {
			return false
		}
	}
	return fmt.Sprint(a["required"]) == fmt.Sprint(b["required"])
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  generate  Write the operation registry derived from the intent catalog
  validate  Validate a registry file
  check     Fail when the registry file no longer matches the intent catalog
  help      Show this help message

Examples:
  registry-updater generate -path configs/operation-registry.json -version 1.1.0
  registry-updater validate -path configs/operation-registry.json
  registry-updater check

Use 'registry-updater <command> -h' for more information about a command.
`)
}
