package record

import (
	"context"
	"fmt"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
	"github.com/aknob/AfpMaster-sub002/internal/joinrule"
)

// MainSelection is the reserved name of the root binding. Join rules
// reference the root's values through it (for example "main.id").
const MainSelection = "main"

// Definition declares one entity type: its main table, its key, and the
// join rules wiring its dependent selections. A definition is built once
// at startup and shared by every record of that type.
type Definition struct {
	// Name is the logical entity name ("event", "address", "invoice").
	Name string

	// Table is the main table; KeyColumn its single-column primary key.
	Table     string
	KeyColumn string

	// Columns optionally pre-supplies the main column set. When empty it
	// is discovered from the store.
	Columns []string

	// Rules maps selection name to its join rule.
	Rules map[string]*joinrule.Rule

	// Formulas holds afterburner formulas per selection; MainSelection
	// keys the main binding's formulas.
	Formulas map[string][]binding.Formula

	// Special holds hook pairs for selections that are not simple
	// equi-joins. Registered in code, never from YAML.
	Special map[string]SpecialSelection
}

// SpecialSelection supplies load and store behavior for a selection with
// no join rule. Both hooks must guarantee termination on their own (the
// chain walk does so with a visited set).
type SpecialSelection struct {
	// Load constructs and fills the selection's binding.
	Load func(ctx context.Context, r *Record, isNew bool) (*binding.Binding, error)

	// Store persists the selection's binding during the record cascade.
	Store func(ctx context.Context, r *Record, b *binding.Binding) error
}

// AddSpecial registers a special selection under name.
func (d *Definition) AddSpecial(name string, sp SpecialSelection) {
	if d.Special == nil {
		d.Special = make(map[string]SpecialSelection)
	}
	d.Special[name] = sp
}

// Validate checks a definition for structural mistakes: missing table or
// key, a selection named like the reserved main selection, rules without a
// table, and rule references to selections that do not exist.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("definition has no name")
	}
	if d.Table == "" || d.KeyColumn == "" {
		return fmt.Errorf("definition %s: main table and key column are required", d.Name)
	}
	if _, ok := d.Rules[MainSelection]; ok {
		return fmt.Errorf("definition %s: %q is reserved for the root binding", d.Name, MainSelection)
	}
	if _, ok := d.Special[MainSelection]; ok {
		return fmt.Errorf("definition %s: %q is reserved for the root binding", d.Name, MainSelection)
	}

	for name, rule := range d.Rules {
		if rule.Table == "" && rule.Verbatim == "" {
			return fmt.Errorf("definition %s: selection %s has no table", d.Name, name)
		}
		if err := d.validateRefs(name, rule.Filter); err != nil {
			return err
		}
	}
	return nil
}

func (d *Definition) validateRefs(selection string, n joinrule.Node) error {
	switch node := n.(type) {
	case nil:
		return nil
	case joinrule.Clause:
		ref, ok := node.RHS.(joinrule.Ref)
		if !ok {
			return nil
		}
		if ref.Selection == MainSelection {
			return nil
		}
		if _, declared := d.Rules[ref.Selection]; !declared {
			if _, special := d.Special[ref.Selection]; !special {
				return fmt.Errorf("definition %s: selection %s references unknown selection %q",
					d.Name, selection, ref.Selection)
			}
		}
		return nil
	case joinrule.And:
		for _, child := range node.Nodes {
			if err := d.validateRefs(selection, child); err != nil {
				return err
			}
		}
		return nil
	case joinrule.Or:
		for _, child := range node.Nodes {
			if err := d.validateRefs(selection, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
