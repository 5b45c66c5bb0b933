// Package prompt provides the instruction text sent with every inference
// request. The default instruction is embedded in the binary; a custom
// text/template file can replace it through inference.instruction_path.
package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"text/template"
)

//go:embed instruction.txt
var defaultInstruction string

// ErrInvalidTemplate is returned when an instruction template cannot be
// read, parsed or executed.
var ErrInvalidTemplate = errors.New("invalid instruction template")

// Data is the value instruction templates are executed with.
type Data struct {
	// Label is the display name of the work item, e.g. the student's name.
	Label string

	// ImageCount is the number of images attached to the request.
	ImageCount int
}

// Instruction renders the instruction text for one work item.
type Instruction struct {
	tmpl *template.Template
}

// Default returns the embedded instruction.
func Default() *Instruction {
	return &Instruction{
		tmpl: template.Must(template.New("instruction").Parse(defaultInstruction)),
	}
}

// Load parses the template at path, or returns Default when path is empty.
func Load(path string) (*Instruction, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidTemplate, path, err)
	}

	tmpl, err := template.New("instruction").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidTemplate, path, err)
	}

	return &Instruction{tmpl: tmpl}, nil
}

// Render executes the instruction template with data.
func (i *Instruction) Render(data Data) (string, error) {
	var buf bytes.Buffer
	if err := i.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return buf.String(), nil
}
