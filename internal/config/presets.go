package config

// Presets are ready-made trace configurations by name.
var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"full-curve": {
		Scheme: "arc-length", Step: 0.01, StepMin: 1e-5, StepMax: 0.2,
		Adaptive: true, ErrorTol: 1e-3, Tol: 1e-6, MaxIter: 20,
		StopAt: "full-curve", QControl: "none", LoadScale: 3.0,
	},
	"fine": {
		Scheme: "arc-length", Step: 0.001, StepMin: 1e-6, StepMax: 0.05,
		Adaptive: true, ErrorTol: 1e-4, Tol: 1e-8, MaxIter: 30,
		StopAt: "nose", QControl: "none", LoadScale: 3.0,
	},
	"natural": {
		Scheme: "natural", Step: 0.05, StepMin: 1e-5, StepMax: 0.1,
		Adaptive: false, ErrorTol: 1e-3, Tol: 1e-6, MaxIter: 20,
		StopAt: "nose", QControl: "none", LoadScale: 2.0,
	},
	"q-limits": {
		Scheme: "arc-length", Step: 0.01, StepMin: 1e-5, StepMax: 0.2,
		Adaptive: true, ErrorTol: 1e-3, Tol: 1e-6, MaxIter: 20,
		StopAt: "nose", QControl: "direct", LoadScale: 3.0,
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
