package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPostPublishTitle labels a post-publish command that did not declare
// its own display title.
const DefaultPostPublishTitle = "Post-publish"

// PostPublishCommand is an optional follow-up step run after a successful
// publish (cache purge, search reindex, ...). It accepts three shapes:
//
//   - absent: no post-publish step
//   - bare string: command name, title defaults to "Post-publish"
//   - mapping/object: {command: name, title: label}
type PostPublishCommand struct {
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	Title   string `yaml:"title,omitempty" json:"title,omitempty"`
}

// Configured reports whether a post-publish command is set.
func (p PostPublishCommand) Configured() bool {
	return p.Command != ""
}

// DisplayTitle returns the title, falling back to the default label.
func (p PostPublishCommand) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return DefaultPostPublishTitle
}

// UnmarshalYAML accepts either a scalar command name or a mapping.
func (p *PostPublishCommand) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		p.Command = name
		p.Title = ""
		return nil
	case yaml.MappingNode:
		type raw PostPublishCommand // avoid recursion
		var r raw
		if err := value.Decode(&r); err != nil {
			return err
		}
		*p = PostPublishCommand(r)
		return nil
	default:
		return fmt.Errorf("post_publish must be a command name or a {command, title} mapping")
	}
}

// ParsePostPublishEnv parses the BAKERY_POST_PUBLISH_COMMAND environment
// value. A JSON object yields {command, title}; any other non-empty value is
// treated as a bare command name. Empty disables the step.
func ParsePostPublishEnv(value string) PostPublishCommand {
	value = strings.TrimSpace(value)
	if value == "" {
		return PostPublishCommand{}
	}
	if strings.HasPrefix(value, "{") {
		var p PostPublishCommand
		if err := json.Unmarshal([]byte(value), &p); err == nil {
			return p
		}
		// Malformed JSON falls through to the bare-name interpretation so a
		// misquoted descriptor still surfaces visibly on the panel.
	}
	return PostPublishCommand{Command: value}
}
