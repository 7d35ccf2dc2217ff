package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AddServer appends a server to the config file's servers list, preserving
// the existing YAML structure and comments. Duplicate ids and names are
// rejected here too, so a hand-edited file cannot be made worse.
func AddServer(configPath string, s Server) error {
	root, doc, err := readDocument(configPath)
	if err != nil {
		return err
	}

	serversNode := findMapValue(doc, "servers")
	if serversNode == nil {
		serversNode = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		doc.Content = append(doc.Content,
			scalarNode("servers"),
			serversNode)
	}

	for _, entry := range serversNode.Content {
		if id, ok := entryID(entry); ok && id == s.ID {
			return fmt.Errorf("a server with id %d already exists", s.ID)
		}
		if name := entryName(entry); name == s.Name {
			return fmt.Errorf("a server named '%s' already exists", s.Name)
		}
	}

	serversNode.Content = append(serversNode.Content, serverNode(s))
	return writeDocument(configPath, root)
}

// RemoveServer deletes the server with the given id from the config file,
// preserving the rest of the document as written.
func RemoveServer(configPath string, id int64) error {
	root, doc, err := readDocument(configPath)
	if err != nil {
		return err
	}

	serversNode := findMapValue(doc, "servers")
	if serversNode == nil || serversNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("no server with id %d in config", id)
	}

	kept := serversNode.Content[:0]
	found := false
	for _, entry := range serversNode.Content {
		if eid, ok := entryID(entry); ok && eid == id {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return fmt.Errorf("no server with id %d in config", id)
	}
	serversNode.Content = kept

	return writeDocument(configPath, root)
}

// readDocument parses the config file as a yaml.Node tree so edits keep
// formatting and comments intact.
func readDocument(configPath string) (*yaml.Node, *yaml.Node, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil, fmt.Errorf("invalid YAML document structure")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("expected mapping at document root")
	}

	return &root, doc, nil
}

func writeDocument(configPath string, root *yaml.Node) error {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

// entryID extracts the id from a server mapping entry.
func entryID(entry *yaml.Node) (int64, bool) {
	idNode := findMapValue(entry, "id")
	if idNode == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(idNode.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func entryName(entry *yaml.Node) string {
	nameNode := findMapValue(entry, "name")
	if nameNode == nil {
		return ""
	}
	return nameNode.Value
}

// serverNode builds the mapping node for one server entry.
func serverNode(s Server) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content,
		scalarNode("id"), intNode(s.ID),
		scalarNode("name"), scalarNode(s.Name))
	if s.Kind != "" {
		node.Content = append(node.Content, scalarNode("kind"), scalarNode(s.Kind))
	}
	if s.URL != "" {
		node.Content = append(node.Content, scalarNode("url"), scalarNode(s.URL))
	}
	if len(s.Tags) > 0 {
		tags := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, tag := range s.Tags {
			tags.Content = append(tags.Content, scalarNode(tag))
		}
		node.Content = append(node.Content, scalarNode("tags"), tags)
	}
	return node
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func intNode(value int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(value, 10)}
}
