package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
)

// SampleRecipeName is written into an empty sample directory.
const SampleRecipeName = "Example.cook"

// sampleRecipe is a minimal Cooklang recipe the server can list and render.
const sampleRecipe = `---
title: Example Pancakes
servings: 2
---

Whisk @flour{125%g}, @milk{250%ml} and @eggs{2} in a #bowl{} until smooth.

Melt @butter{1%tbsp} in a #frying pan{} and cook ladlefuls of batter for ~{2%minutes} per side.
`

// prepareSampleDir creates dir if needed and seeds it with an example
// recipe when it is empty. It returns the absolute path for mounting.
func prepareSampleDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve sample dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("create sample dir: %w", err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("read sample dir: %w", err)
	}
	if len(entries) > 0 {
		return abs, nil
	}

	if err := os.WriteFile(filepath.Join(abs, SampleRecipeName), []byte(sampleRecipe), 0644); err != nil {
		return "", fmt.Errorf("write sample recipe: %w", err)
	}
	return abs, nil
}
