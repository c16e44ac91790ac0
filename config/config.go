// Copyright (C) 2025 Lakeshed Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package config aggregates configuration for the pipeline. Defaults
// are applied here, at the boundary; collaborators receive explicit
// structs and never consult the environment themselves.
package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/lakeshed/lakeshed/internal/pgstore"
)

// Config aggregates configuration for the application.
type Config struct {
	S3       S3Config       `mapstructure:"s3"`
	Database pgstore.Config `mapstructure:"database"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Load     LoadConfig     `mapstructure:"load"`
	LogFile  string         `mapstructure:"log_file"`
}

// S3Config identifies the object-store target. The bucket is resolved
// once here, not per call.
type S3Config struct {
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"`
	PathStyle   bool   `mapstructure:"path_style"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
}

// UploadConfig holds the batch-upload defaults, overridable by the
// upload command's positional arguments.
type UploadConfig struct {
	SourceFile   string `mapstructure:"source_file"`
	BatchSize    int    `mapstructure:"batch_size"`
	DelaySeconds int    `mapstructure:"delay_seconds"`
	Prefix       string `mapstructure:"prefix"`
}

// LoadConfig holds the relational-loader defaults.
type LoadConfig struct {
	Table    string `mapstructure:"table"`
	Limit    int    `mapstructure:"limit"`
	IfExists string `mapstructure:"if_exists"`
}

// Default returns the configuration with built-in defaults applied.
func Default() *Config {
	return &Config{
		Upload: UploadConfig{
			SourceFile:   "meta_Amazon_Fashion.jsonl",
			BatchSize:    1000,
			DelaySeconds: 20,
			Prefix:       "raw/data/",
		},
		Load: LoadConfig{
			Table:    "raw_products",
			IfExists: "append",
		},
	}
}

// Load reads configuration from config.yaml in the working directory
// and from environment variables. Environment variables use the prefix
// "LAKESHED" and dots in keys become underscores; "s3.bucket" is
// "LAKESHED_S3_BUCKET".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("LAKESHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
