package cli

import (
	"encoding/json"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/semmy-space/monthend/internal/output"
)

// SchemaCmd outputs machine-readable command tree as JSON
type SchemaCmd struct {
	Command string `arg:"" optional:"" help:"Command path to show schema for (e.g., 'blob encrypt')"`
}

// SchemaNode is one command in the tree
type SchemaNode struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"` // "application" or "command"
	Help     string        `json:"help,omitempty"`
	Aliases  []string      `json:"aliases,omitempty"`
	Children []*SchemaNode `json:"commands,omitempty"`
	Flags    []*SchemaFlag `json:"flags,omitempty"`
	Args     []*SchemaArg  `json:"args,omitempty"`
}

// SchemaFlag describes a command flag
type SchemaFlag struct {
	Name     string   `json:"name"`
	Help     string   `json:"help,omitempty"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Default  string   `json:"default,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	Short    string   `json:"short,omitempty"`
	Env      string   `json:"env,omitempty"`
}

// SchemaArg describes a positional argument
type SchemaArg struct {
	Name     string `json:"name"`
	Help     string `json:"help,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Run executes the schema command
func (cmd *SchemaCmd) Run(ctx *kong.Context, deps *Deps) error {
	node := ctx.Model.Node
	for _, part := range strings.Fields(cmd.Command) {
		node = childNamed(node, part)
		if node == nil {
			return output.Errorf(output.ExitUsage, "command not found: %s", cmd.Command).
				WithHint("Run 'monthend schema' for the full tree")
		}
	}

	enc := json.NewEncoder(deps.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(describeNode(node))
}

func childNamed(node *kong.Node, name string) *kong.Node {
	for _, child := range node.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

func describeNode(node *kong.Node) *SchemaNode {
	out := &SchemaNode{
		Name:    node.Name,
		Type:    "command",
		Help:    node.Help,
		Aliases: node.Aliases,
		Flags:   describeFlags(node.Flags),
	}
	if node.Type == kong.ApplicationNode {
		out.Type = "application"
	}
	for _, arg := range node.Positional {
		out.Args = append(out.Args, &SchemaArg{Name: arg.Name, Help: arg.Help, Required: arg.Required})
	}
	for _, child := range node.Children {
		if !child.Hidden {
			out.Children = append(out.Children, describeNode(child))
		}
	}
	return out
}

// describeFlags skips --help; it is on every node.
func describeFlags(flags []*kong.Flag) []*SchemaFlag {
	var out []*SchemaFlag
	for _, f := range flags {
		if f.Name == "help" || f.Hidden {
			continue
		}
		sf := &SchemaFlag{
			Name:     f.Name,
			Help:     f.Help,
			Type:     "string",
			Required: f.Required,
			Default:  f.Default,
		}
		if f.Value != nil && f.Value.Target.IsValid() {
			sf.Type = f.Value.Target.Type().String()
		}
		if len(f.Envs) > 0 {
			sf.Env = f.Envs[0]
		}
		if f.Short != 0 {
			sf.Short = string(f.Short)
		}
		if f.Enum != "" {
			sf.Enum = strings.Split(f.Enum, ",")
		}
		out = append(out, sf)
	}
	return out
}
