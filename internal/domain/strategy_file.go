package domain

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
)

// Strategy definition files are YAML documents validated at load time.
// Unknown condition types are rejected here, at definition time, rather
// than being tolerated as silent per-asset failures during a scan.

// StrategyFile is the on-disk shape of a strategy definition.
type StrategyFile struct {
	Name        string          `yaml:"name" validate:"required"`
	Description string          `yaml:"description"`
	Direction   Direction       `yaml:"direction" default:"long" validate:"oneof=long short both"`
	Regimes     []string        `yaml:"regimes" validate:"dive,oneof=trending_up trending_down ranging high_volatility"`
	Conditions  []ConditionFile `yaml:"conditions" validate:"required,min=1,dive"`
}

// ConditionFile is one condition entry of a strategy file.
type ConditionFile struct {
	Type       string         `yaml:"type" validate:"required,condition_type"`
	Timeframe  string         `yaml:"timeframe" default:"1d"`
	Parameters map[string]any `yaml:"parameters"`
	Required   *bool          `yaml:"required" default:"true"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration can only fail for an empty tag or nil func.
	_ = v.RegisterValidation("condition_type", func(fl validator.FieldLevel) bool {
		return conditions.IsRegistered(fl.Field().String())
	})
	return v
}

// LoadStrategyFile reads, defaults, and validates a strategy definition.
func LoadStrategyFile(path string) (*Strategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}

	var file StrategyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse strategy file: %w", err)
	}
	if err := defaults.Set(&file); err != nil {
		return nil, fmt.Errorf("failed to apply strategy defaults: %w", err)
	}
	if err := newValidator().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid strategy definition: %w", err)
	}

	return file.ToStrategy(), nil
}

// ToStrategy converts the file shape to the domain entity.
func (f *StrategyFile) ToStrategy() *Strategy {
	strat := &Strategy{
		Name:        f.Name,
		Description: f.Description,
		Direction:   f.Direction,
		IsActive:    true,
		Regimes:     f.Regimes,
	}
	for i, c := range f.Conditions {
		required := true
		if c.Required != nil {
			required = *c.Required
		}
		strat.Conditions = append(strat.Conditions, Condition{
			Type:       c.Type,
			Timeframe:  c.Timeframe,
			Parameters: conditions.Params(c.Parameters),
			Required:   required,
			Order:      i,
		})
	}
	return strat
}

// ValidateStrategy checks a domain strategy the same way file loading does;
// used before persisting strategies arriving through the API.
func ValidateStrategy(s *Strategy) error {
	if s.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	switch s.Direction {
	case Long, Short, Both:
	default:
		return fmt.Errorf("invalid direction %q", s.Direction)
	}
	if len(s.Conditions) == 0 {
		return fmt.Errorf("strategy needs at least one condition")
	}
	for _, c := range s.Conditions {
		if !conditions.IsRegistered(c.Type) {
			return fmt.Errorf("%w: %q", conditions.ErrUnknownCondition, c.Type)
		}
	}
	return nil
}
