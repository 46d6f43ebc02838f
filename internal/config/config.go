package config

import (
	"errors"
	"fmt"
	"housing_features/internal/core"
	"housing_features/internal/domain/model"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const envPrefix = "HOUSING"

// Config is the complete batch configuration. Scalars come from HOUSING_*
// environment variables with defaults; the optional YAML file overrides them
// and is the only place facility sources and remote models can be listed.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Input      InputConfig      `yaml:"input" envconfig:"INPUT"`
	Output     OutputConfig     `yaml:"output" envconfig:"OUTPUT"`
	Features   FeaturesConfig   `yaml:"features" envconfig:"FEATURES"`
	Facilities []FacilityConfig `yaml:"facilities" ignored:"true"`
	Encoding   EncodingConfig   `yaml:"encoding" envconfig:"ENCODING"`
	Overpass   OverpassConfig   `yaml:"overpass" envconfig:"OVERPASS"`
	Postgres   PostgresConfig   `yaml:"postgres" envconfig:"POSTGRES"`
	Model      ModelConfig      `yaml:"model" envconfig:"MODEL"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" default:"info"`
}

// InputConfig names the transaction tables and their columns.
type InputConfig struct {
	Train        string `yaml:"train" envconfig:"TRAIN"`
	Test         string `yaml:"test" envconfig:"TEST"`
	IDColumn     string `yaml:"id_column" envconfig:"ID_COLUMN" default:"ID"`
	XColumn      string `yaml:"x_column" envconfig:"X_COLUMN" default:"橫坐標"`
	YColumn      string `yaml:"y_column" envconfig:"Y_COLUMN" default:"縱坐標"`
	CRS          string `yaml:"crs" envconfig:"CRS" default:"EPSG:3826"` // EPSG:4326 records are projected to TWD97
	TargetColumn string `yaml:"target_column" envconfig:"TARGET_COLUMN" default:"單價"`
	Villages     string `yaml:"villages" envconfig:"VILLAGES"`
	VillageName  string `yaml:"village_name" envconfig:"VILLAGE_NAME" default:"VILLNAME"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir" envconfig:"DIR" default:"output"`
	Metrics string `yaml:"metrics" envconfig:"METRICS"`
}

// FeaturesConfig holds the defaults applied to every facility source.
type FeaturesConfig struct {
	K             int      `yaml:"k" envconfig:"K" default:"3"`
	Radius        float64  `yaml:"radius" envconfig:"RADIUS" default:"500"`
	Workers       int      `yaml:"workers" envconfig:"WORKERS" default:"0"`
	VillageFields []string `yaml:"village_fields" envconfig:"VILLAGE_FIELDS" default:"avg_tax,density,edu_p"`
}

// FacilityConfig is one facility layer, read from Path (.csv/.xlsx) or
// fetched from OpenStreetMap when OSM is set.
type FacilityConfig struct {
	Name      string      `yaml:"name"`
	Path      string      `yaml:"path"`
	Sheet     string      `yaml:"sheet"`
	OSM       *OSMSource  `yaml:"osm"`
	K         int         `yaml:"k"`     // 0 uses features.k, negative disables the distance feature
	Radii     []float64   `yaml:"radii"` // empty uses features.radius
	Propagate []Propagate `yaml:"propagate"`
}

// Propagate copies Attribute of the nearest facility into a record column.
// A bare string in YAML is shorthand for {attribute: <string>}.
type Propagate struct {
	Attribute string `yaml:"attribute"`
	Column    string `yaml:"column"` // empty uses {attribute}_{facility name}
}

func (p *Propagate) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Attribute = value.Value
		return nil
	}
	type plain Propagate
	return value.Decode((*plain)(p))
}

// OutputColumn is the record column the attribute is written to.
func (p Propagate) OutputColumn(facility string) string {
	if p.Column != "" {
		return p.Column
	}
	return p.Attribute + "_" + facility
}

type OSMSource struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type EncodingConfig struct {
	Columns []string `yaml:"columns" envconfig:"COLUMNS"`
	Stats   []string `yaml:"stats" envconfig:"STATS" default:"mean"`
	NMin    float64  `yaml:"n_min" envconfig:"N_MIN" default:"10"`
}

type OverpassConfig struct {
	Endpoint string        `yaml:"endpoint" envconfig:"ENDPOINT" default:"https://overpass-api.de/api/interpreter"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s"`
	// south, west, north, east
	BBox []float64 `yaml:"bbox" envconfig:"BBOX" default:"21.8,119.9,25.4,122.1"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

type ModelConfig struct {
	Enabled    bool                  `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Columns    []string              `yaml:"columns" envconfig:"COLUMNS"`
	SplitRatio float64               `yaml:"split_ratio" envconfig:"SPLIT_RATIO" default:"0.8"`
	RidgeAlpha float64               `yaml:"ridge_alpha" envconfig:"RIDGE_ALPHA" default:"1"`
	LogTarget  bool                  `yaml:"log_target" envconfig:"LOG_TARGET" default:"true"`
	Stacking   bool                  `yaml:"stacking" envconfig:"STACKING" default:"true"`
	MLEndpoint string                `yaml:"ml_endpoint" envconfig:"ML_ENDPOINT"`
	MLTimeout  time.Duration         `yaml:"ml_timeout" envconfig:"ML_TIMEOUT" default:"5m"`
	Remote     []model.RegressorSpec `yaml:"remote" ignored:"true"`
}

// Load reads the environment, then overlays the YAML file at path if path is
// not empty, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrInvalidArgument)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Input.Train == "" {
		errs = append(errs, invalid("input.train is required"))
	}
	if c.Input.IDColumn == "" || c.Input.XColumn == "" || c.Input.YColumn == "" {
		errs = append(errs, invalid("input id/x/y columns must be set"))
	}
	if crs := model.CRS(c.Input.CRS); crs != model.CRSTWD97 && crs != model.CRSWGS84 {
		errs = append(errs, invalid("input.crs must be %s or %s, got %q", model.CRSTWD97, model.CRSWGS84, c.Input.CRS))
	}
	if c.Features.K <= 0 {
		errs = append(errs, invalid("features.k must be positive, got %d", c.Features.K))
	}
	if !(c.Features.Radius >= 0) {
		errs = append(errs, invalid("features.radius must be >= 0, got %v", c.Features.Radius))
	}
	if c.Features.Workers < 0 {
		errs = append(errs, invalid("features.workers must be >= 0, got %d", c.Features.Workers))
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, invalid("logging.level %q is not a log level", c.Logging.Level))
	}

	seen := make(map[string]bool, len(c.Facilities))
	propagated := make(map[string]string)
	for i, f := range c.Facilities {
		switch {
		case f.Name == "":
			errs = append(errs, invalid("facilities[%d] has no name", i))
		case seen[f.Name]:
			errs = append(errs, invalid("facility %s listed twice", f.Name))
		}
		seen[f.Name] = true
		if (f.Path == "") == (f.OSM == nil) {
			errs = append(errs, invalid("facility %s needs exactly one of path or osm", f.Name))
		}
		if f.OSM != nil && f.OSM.Key == "" {
			errs = append(errs, invalid("facility %s osm.key is empty", f.Name))
		}
		for _, r := range f.Radii {
			if !(r >= 0) {
				errs = append(errs, invalid("facility %s radius %v must be >= 0", f.Name, r))
			}
		}
		for _, p := range f.Propagate {
			if p.Attribute == "" {
				errs = append(errs, invalid("facility %s propagates an empty attribute", f.Name))
				continue
			}
			col := p.OutputColumn(f.Name)
			if prev, dup := propagated[col]; dup {
				errs = append(errs, invalid("facility %s propagates into column %s, already used by %s", f.Name, col, prev))
			}
			propagated[col] = f.Name
		}
	}

	if len(c.Encoding.Columns) > 0 {
		if c.Input.TargetColumn == "" {
			errs = append(errs, invalid("encoding needs input.target_column"))
		}
		if len(c.Encoding.Stats) == 0 {
			errs = append(errs, invalid("encoding.stats is empty"))
		}
	}
	for _, s := range c.Encoding.Stats {
		if _, err := core.ParseStatType(s); err != nil {
			errs = append(errs, err)
		}
	}
	if !(c.Encoding.NMin >= 0) {
		errs = append(errs, invalid("encoding.n_min must be >= 0, got %v", c.Encoding.NMin))
	}

	if len(c.Overpass.BBox) != 4 {
		errs = append(errs, invalid("overpass.bbox needs 4 values, got %d", len(c.Overpass.BBox)))
	}

	if c.Model.Enabled {
		if !(c.Model.SplitRatio > 0 && c.Model.SplitRatio < 1) {
			errs = append(errs, invalid("model.split_ratio must be in (0, 1), got %v", c.Model.SplitRatio))
		}
		if c.Model.RidgeAlpha < 0 {
			errs = append(errs, invalid("model.ridge_alpha must be >= 0, got %v", c.Model.RidgeAlpha))
		}
		if len(c.Model.Remote) > 0 && c.Model.MLEndpoint == "" {
			errs = append(errs, invalid("model.remote needs model.ml_endpoint"))
		}
	}

	return errors.Join(errs...)
}

// OverpassBounds returns the configured bbox as model.Bounds.
func (c *Config) OverpassBounds() model.Bounds {
	b := c.Overpass.BBox
	return model.Bounds{MinLat: b[0], MinLon: b[1], MaxLat: b[2], MaxLon: b[3]}
}
