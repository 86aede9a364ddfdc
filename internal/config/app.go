package config

type AppConfig struct {
	Server ServerConfig
	Call   CallConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	callCfg, err := LoadCall()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Call:   callCfg,
		Log:    logCfg,
	}, nil
}
