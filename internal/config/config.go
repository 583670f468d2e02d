package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int
	Password       string
	LogDirectory   string
	DatabasePath   string
	StaticDir      string
	ConsoleBacklog int // Maximum number of bytes kept in the form's log pane

	InputDirectory  string
	OutputDirectory string
	Threshold       float64

	ModelName           string // Model identifier handed to the detector (e.g. MDV5A)
	ModelPath           string
	ConfigPath          string
	InferenceBackend    string // "dnn" or "process"
	DetectorCommand     string // Command template for the "process" backend
	CheckpointFrequency int    // Images between checkpoint writes, <= 0 disables them

	Workers       int    // Render workers, 0 means one per available processor
	RenderBackend string // "gg" or "cv"
}

const (
	BackendDNN     = "dnn"
	BackendProcess = "process"
	RenderGG       = "gg"
	RenderCV       = "cv"
)

// Load reads configuration from .env, the environment and an optional
// annotator.yaml in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetConfigName("annotator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	// A missing or unreadable config file falls back to env and defaults.
	_ = v.ReadInConfig()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("password", "")
	v.SetDefault("log_dir", filepath.Join(".", "logs"))
	v.SetDefault("db_path", filepath.Join(".", "data", "runs.db"))
	v.SetDefault("static_dir", "static")
	v.SetDefault("console_backlog", 256*1024)

	v.SetDefault("input_dir", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("threshold", 0.5)

	v.SetDefault("model_name", "MDV5A")
	v.SetDefault("model_path", filepath.Join(".", "models", "frozen_inference_graph.pb"))
	v.SetDefault("config_path", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"))
	v.SetDefault("inference_backend", BackendDNN)
	v.SetDefault("detector_command", "python -m megadetector.detection.run_detector_batch {model} {input} {output} --recursive --checkpoint_path {checkpoint} --checkpoint_frequency {frequency}")
	v.SetDefault("checkpoint_frequency", 1000)

	v.SetDefault("workers", 0)
	v.SetDefault("render_backend", RenderGG)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:                getInt(v, "port", 8080),
		Password:            v.GetString("password"),
		LogDirectory:        v.GetString("log_dir"),
		DatabasePath:        v.GetString("db_path"),
		StaticDir:           v.GetString("static_dir"),
		ConsoleBacklog:      getInt(v, "console_backlog", 256*1024),
		InputDirectory:      v.GetString("input_dir"),
		OutputDirectory:     v.GetString("output_dir"),
		Threshold:           getFloat(v, "threshold", 0.5),
		ModelName:           v.GetString("model_name"),
		ModelPath:           v.GetString("model_path"),
		ConfigPath:          v.GetString("config_path"),
		InferenceBackend:    v.GetString("inference_backend"),
		DetectorCommand:     v.GetString("detector_command"),
		CheckpointFrequency: getInt(v, "checkpoint_frequency", 1000),
		Workers:             getInt(v, "workers", 0),
		RenderBackend:       v.GetString("render_backend"),
	}

	if cfg.Threshold < 0 {
		cfg.Threshold = 0
	}
	if cfg.Threshold > 1 {
		cfg.Threshold = 1
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	return cfg
}

// getInt returns the integer value of key, or defaultValue when the raw
// value does not parse.
func getInt(v *viper.Viper, key string, defaultValue int) int {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(v *viper.Viper, key string, defaultValue float64) float64 {
	f, err := cast.ToFloat64E(v.Get(key))
	if err != nil {
		return defaultValue
	}
	return f
}
