package schema

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"liveconf/internal/fields"
	"liveconf/internal/model"
)

// Load 从 YAML 文件加载 schema
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return s, nil
}

// Parse 解析 YAML 文本。
//
//	additional_fields:
//	  yes_no: {kind: choice, choices: [{value: "yes"}, {value: "no"}]}
//	config:
//	  SITE_NAME: ["liveconf", "Public name"]
//	  LAUNCH: {default: 2025-01-01, help: "Launch day", type: date}
//
// config 使用 yaml.Node 解析以保留声明顺序。
func Parse(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty schema document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: schema root must be a mapping", root.Line)
	}

	s := &Schema{index: make(map[string]int)}
	var configNode *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "config":
			configNode = val
		case "additional_fields":
			exts, err := parseExtensions(val)
			if err != nil {
				return nil, err
			}
			s.extensions = exts
		default:
			return nil, fmt.Errorf("line %d: unknown top-level key %q", key.Line, key.Value)
		}
	}
	if configNode == nil {
		return nil, fmt.Errorf("schema has no config section")
	}
	if configNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: config must be a mapping", configNode.Line)
	}
	for i := 0; i+1 < len(configNode.Content); i += 2 {
		st, err := parseSetting(configNode.Content[i], configNode.Content[i+1])
		if err != nil {
			return nil, err
		}
		if err := s.add(st); err != nil {
			return nil, fmt.Errorf("line %d: %w", configNode.Content[i].Line, err)
		}
	}
	return s, nil
}

func parseExtensions(node *yaml.Node) ([]TypeExtension, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: additional_fields must be a mapping", node.Line)
	}
	var out []TypeExtension
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var ext fields.Extension
		if err := val.Decode(&ext); err != nil {
			return nil, fmt.Errorf("line %d: additional field %q: %w", key.Line, key.Value, err)
		}
		if ext.Kind == "" {
			return nil, fmt.Errorf("line %d: additional field %q: kind is required", key.Line, key.Value)
		}
		out = append(out, TypeExtension{Type: model.ValueType(key.Value), Extension: ext})
	}
	return out, nil
}

func parseSetting(key, val *yaml.Node) (model.Setting, error) {
	st := model.Setting{Name: key.Value}
	var defNode *yaml.Node

	switch val.Kind {
	case yaml.SequenceNode:
		if len(val.Content) < 2 || len(val.Content) > 3 {
			return st, fmt.Errorf("line %d: %s: expected [default, help, type?]", val.Line, st.Name)
		}
		defNode = val.Content[0]
		st.HelpText = val.Content[1].Value
		if len(val.Content) == 3 {
			st.Type = model.ValueType(val.Content[2].Value)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(val.Content); i += 2 {
			k, v := val.Content[i], val.Content[i+1]
			switch k.Value {
			case "default":
				defNode = v
			case "help":
				st.HelpText = v.Value
			case "type":
				st.Type = model.ValueType(v.Value)
			default:
				return st, fmt.Errorf("line %d: %s: unknown key %q", k.Line, st.Name, k.Value)
			}
		}
		if defNode == nil {
			return st, fmt.Errorf("line %d: %s: default is required", val.Line, st.Name)
		}
	default:
		return st, fmt.Errorf("line %d: %s: entry must be a sequence or mapping", val.Line, st.Name)
	}

	def, dateOnly, err := scalarValue(defNode)
	if err != nil {
		return st, fmt.Errorf("line %d: %s: %w", defNode.Line, st.Name, err)
	}
	st.Default = def
	if dateOnly && st.Type == "" {
		st.Type = model.TypeDate
	}
	return st, nil
}

// scalarValue 按 YAML 标签把标量解码为 Go 值；dateOnly 表示 !!timestamp 只有日期部分
func scalarValue(n *yaml.Node) (any, bool, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, false, fmt.Errorf("default must be a scalar")
	}
	switch n.ShortTag() {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, false, err
		}
		return b, false, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, false, err
		}
		return i, false, nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			var v float64
			if derr := n.Decode(&v); derr != nil {
				return nil, false, derr
			}
			f = v
		}
		return f, false, nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, false, err
		}
		return t, !strings.ContainsAny(n.Value, "tT :"), nil
	case "!!str":
		return n.Value, false, nil
	case "!!null":
		return nil, false, fmt.Errorf("default cannot be null")
	}
	return nil, false, fmt.Errorf("unsupported default tag %s", n.ShortTag())
}
