package stockpile

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	engine "github.com/stockpile-io/stockpile"
	"github.com/stockpile-io/stockpile/cf"
	"gopkg.in/yaml.v2"
)

// LoadProfile builds the engine profile from the baseline, the optional
// --config YAML file, and the selected instrument.
func LoadProfile() (*engine.Profile, error) {
	p := engine.NewBaselineProfile()

	if ConfigPath != "" {
		data, err := os.ReadFile(ConfigPath)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read config [%s]", ConfigPath)
		}
		dataMap := make(map[interface{}]interface{})
		if err = yaml.Unmarshal(data, dataMap); err != nil {
			return nil, errors.Wrapf(err, "unable to unmarshal config data [%s]", ConfigPath)
		}
		if err = p.Load(cf.MapIToMapS(dataMap)); err != nil {
			return nil, errors.Wrapf(err, "unable to load profile [%s]", ConfigPath)
		}
	}

	i, err := engine.NewInstrument(SelectedInstrument, map[string]interface{}{"path": MetricsPath})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create instrument [%s]", SelectedInstrument)
	}
	p.SetInstrument(i)

	logrus.Infof(p.Dump())
	return p, nil
}
