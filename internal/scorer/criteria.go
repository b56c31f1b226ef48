package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadCriteria reads a criteria override file. The YAML has a top-level
// "criteria" key. An unreadable or invalid file is an error so a bad
// override fails startup instead of silently scoring with defaults.
func LoadCriteria(path string) ([]Criterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read criteria %s", path)
	}

	var wrapper struct {
		Criteria []Criterion `yaml:"criteria"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "scorer: parse criteria")
	}

	if err := ValidateCriteria(wrapper.Criteria); err != nil {
		return nil, err
	}
	return wrapper.Criteria, nil
}
