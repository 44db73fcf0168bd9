package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "SPENDWISE_"

type Application struct {
	Host     string   `koanf:"host"`
	Server   Server   `koanf:"server"`
	Database Database `koanf:"db"`
	Forecast Forecast `koanf:"forecast"`
	Auth     Auth     `koanf:"auth"`
	Log      Log      `koanf:"log"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`

	// MaxConns and MinConns size the connection pool; zero keeps the pgx defaults.
	MaxConns int32 `koanf:"maxconns"`
	MinConns int32 `koanf:"minconns"`
}

type Forecast struct {
	// MaxOccurrencesPerObligation bounds the projection loop of a single obligation.
	MaxOccurrencesPerObligation int `koanf:"maxoccurrencesperobligation"`
}

type Auth struct {
	// JwtSecret enables bearer token authentication when not empty.
	JwtSecret string `koanf:"jwtsecret"`
}

type Log struct {
	Format string `koanf:"format"`
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:3000",
		Server: Server{
			Addr: ":8181",
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "spendwise",
			Pass:     "",
			Name:     "spendwise",
			Schema:   "spendwise",
			MaxConns: 25,
			MinConns: 2,
		},
		Forecast: Forecast{
			MaxOccurrencesPerObligation: 10000,
		},
		Log: Log{
			Format: "text",
		},
	}
}

// Load reads configuration from defaults, the YAML file at path and SPENDWISE_ environment
// variables, in that order. A .env file in the working directory is loaded into the
// environment first when present.
func Load(path string) (Application, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("could not load .env file: %v", err)
	}

	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if app.Forecast.MaxOccurrencesPerObligation <= 0 {
		log.Warnf("invalid forecast.maxOccurrencesPerObligation %d, using default",
			app.Forecast.MaxOccurrencesPerObligation)
		app.Forecast.MaxOccurrencesPerObligation = Defaults().Forecast.MaxOccurrencesPerObligation
	}

	return app, nil
}
