package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"
)

// LoadFromDirectory loads all prompts and schemas from a directory structure
// into r. Expected structure:
//
//	baseDir/
//	  prompts/
//	    extraction/
//	      line_items.json
//	  schemas/
//	    line_items.json
//
// A missing prompts directory is not an error; the built-ins stay in place.
func LoadFromDirectory(r *Registry, baseDir string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	promptDir := filepath.Join(baseDir, "prompts")
	if err := loadPrompts(r, promptDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("no prompts directory, using built-in prompts", zap.String("dir", promptDir))
		} else {
			return fmt.Errorf("failed to load prompts: %w", err)
		}
	}

	schemaDir := filepath.Join(baseDir, "schemas")
	if err := loadSchemas(r, schemaDir); err != nil {
		log.Warn("no schemas loaded", zap.String("dir", schemaDir), zap.Error(err))
	}

	RegisterBuiltins(r)
	log.Info("prompts loaded", zap.Int("count", r.Count()), zap.String("dir", baseDir))
	return nil
}

// loadPrompts recursively loads all .json files from the prompts directory
func loadPrompts(r *Registry, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// Auto-generate ID from path if not specified
		if pt.ID == "" {
			pt.ID = generateIDFromPath(path, dir)
		}
		if pt.Category == "" {
			pt.Category = detectCategory(path, dir)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		return nil
	})
}

// loadSchemas registers every schema file under dir by base name.
func loadSchemas(r *Registry, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil // Schemas are optional
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", path, err)
		}

		schema, err := ParseSchema(strings.TrimSuffix(filepath.Base(path), ".json"), data)
		if err != nil {
			return err
		}
		return r.RegisterSchema(schema)
	})
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "prompts/extraction/line_items.json" -> "extraction.line_items"
func generateIDFromPath(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	relPath = strings.TrimSuffix(relPath, ".json")
	return strings.ReplaceAll(relPath, string(filepath.Separator), ".")
}

// detectCategory extracts the category from the folder structure
func detectCategory(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

// RenderUserPrompt executes the user prompt template with vars.
// Declared variables without a value fall back to their default; required
// ones without a default fail.
func RenderUserPrompt(pt *PromptTemplate, given Vars) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}

	vars := make(Vars, len(given)+len(pt.Variables))
	for k, v := range given {
		vars[k] = v
	}
	for _, v := range pt.Variables {
		if _, ok := vars[v.Name]; ok {
			continue
		}
		if v.Default != "" {
			vars[v.Name] = v.Default
		} else if v.Required {
			return "", fmt.Errorf("prompt %s: missing required variable %s", pt.ID, v.Name)
		}
	}

	tmpl, err := template.New(pt.ID).Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
