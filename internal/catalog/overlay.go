package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay file format. Sites add their own record kinds without recompiling;
// built-in kinds cannot be redefined.
//
//	kinds:
//	  - name: core_shop_report
//	    key_fields:
//	      - {name: date, date: true}
//	      - {name: shift}
//	    sections:
//	      - name: shift_details
//	        primary: true
//	        fields:
//	          - {path: incharge, type: string}
//	          - {path: members, type: list, policy: append_only}
type overlayFile struct {
	Kinds []overlayKind `yaml:"kinds"`
}

type overlayKind struct {
	Name      string           `yaml:"name"`
	KeyFields []overlayKey     `yaml:"key_fields"`
	Sections  []overlaySection `yaml:"sections"`
}

type overlayKey struct {
	Name string `yaml:"name"`
	Date bool   `yaml:"date"`
}

type overlaySection struct {
	Name    string         `yaml:"name"`
	Primary bool           `yaml:"primary"`
	Fields  []overlayField `yaml:"fields"`
}

type overlayField struct {
	Path   string `yaml:"path"`
	Type   string `yaml:"type"`
	Policy string `yaml:"policy"`
}

// LoadOverlay reads a YAML overlay file and registers its kinds into the
// catalog. Registration validation applies to overlay kinds exactly as it does
// to built-in ones.
func (c *Catalog) LoadOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog overlay: %w", err)
	}
	var file overlayFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse catalog overlay: %w", err)
	}
	for _, ok := range file.Kinds {
		ks, err := ok.toSchema()
		if err != nil {
			return err
		}
		if err := c.Register(ks); err != nil {
			return fmt.Errorf("catalog overlay: %w", err)
		}
	}
	return nil
}

func (o overlayKind) toSchema() (*KindSchema, error) {
	ks := &KindSchema{Name: o.Name}
	for _, kf := range o.KeyFields {
		ks.KeyFields = append(ks.KeyFields, KeyField{Name: kf.Name, Date: kf.Date})
	}
	for _, s := range o.Sections {
		ss := SectionSchema{Name: s.Name, Primary: s.Primary}
		for _, f := range s.Fields {
			ft, err := parseFieldType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("kind %q field %q: %w", o.Name, f.Path, err)
			}
			p, err := parsePolicy(f.Policy)
			if err != nil {
				return nil, fmt.Errorf("kind %q field %q: %w", o.Name, f.Path, err)
			}
			ss.Fields = append(ss.Fields, FieldSchema{Path: f.Path, Type: ft, Policy: p})
		}
		ks.Sections = append(ks.Sections, ss)
	}
	return ks, nil
}

func parseFieldType(s string) (FieldType, error) {
	switch s {
	case "", "any":
		return TypeAny, nil
	case "string":
		return TypeString, nil
	case "number":
		return TypeNumber, nil
	case "bool":
		return TypeBool, nil
	case "list":
		return TypeList, nil
	default:
		return TypeAny, fmt.Errorf("unknown field type %q", s)
	}
}

func parsePolicy(s string) (Policy, error) {
	switch s {
	case "", "overwrite_if_empty":
		return OverwriteIfEmpty, nil
	case "append_only":
		return AppendOnly, nil
	case "always_overwrite":
		return AlwaysOverwrite, nil
	default:
		return OverwriteIfEmpty, fmt.Errorf("unknown merge policy %q", s)
	}
}
