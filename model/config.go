package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// datasourceFile is the on-disk shape of a provider/datasource config
// block: provider + connection settings, with $env(VAR) style values
// resolved against the process environment the way the teacher's own
// codegen config does for its datasource URL.
type datasourceFile struct {
	Provider   Provider `yaml:"provider"`
	Datasource struct {
		URL             string   `yaml:"url"`
		MaxOpenConns    int      `yaml:"maxOpenConns"`
		MaxIdleConns    int      `yaml:"maxIdleConns"`
		ConnMaxLifetime int      `yaml:"connMaxLifetimeSeconds"`
		SQLitePragmas   []string `yaml:"sqlitePragmas"`
		SearchPath      string   `yaml:"searchPath"`
	} `yaml:"datasource"`
}

// LoadDatasourceConfig decodes a YAML provider/datasource block (see
// Schema.Datasource) from raw bytes, resolving any "$env(VAR)" value
// against the process environment.
func LoadDatasourceConfig(data []byte) (Provider, DatasourceConfig, error) {
	var f datasourceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", DatasourceConfig{}, fmt.Errorf("model: decoding datasource config: %w", err)
	}
	url, err := resolveEnv(f.Datasource.URL)
	if err != nil {
		return "", DatasourceConfig{}, err
	}
	searchPath, err := resolveEnv(f.Datasource.SearchPath)
	if err != nil {
		return "", DatasourceConfig{}, err
	}
	cfg := DatasourceConfig{
		URL:             url,
		MaxOpenConns:    f.Datasource.MaxOpenConns,
		MaxIdleConns:    f.Datasource.MaxIdleConns,
		ConnMaxLifetime: f.Datasource.ConnMaxLifetime,
		SQLitePragmas:   f.Datasource.SQLitePragmas,
		SearchPath:      searchPath,
	}
	return f.Provider, cfg, nil
}

// LoadDatasourceConfigFile is LoadDatasourceConfig reading from path.
func LoadDatasourceConfigFile(path string) (Provider, DatasourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", DatasourceConfig{}, fmt.Errorf("model: reading %s: %w", path, err)
	}
	return LoadDatasourceConfig(data)
}

// resolveEnv expands a literal "$env(VAR_NAME)" value to the named
// environment variable's value, leaving every other string untouched.
func resolveEnv(v string) (string, error) {
	const prefix, suffix = "$env(", ")"
	if len(v) < len(prefix)+len(suffix) || v[:len(prefix)] != prefix || v[len(v)-len(suffix):] != suffix {
		return v, nil
	}
	name := v[len(prefix) : len(v)-len(suffix)]
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("model: datasource config references unset environment variable %q", name)
	}
	return val, nil
}
