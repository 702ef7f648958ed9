package observability

import (
	"github.com/grafana/pyroscope-go"

	"sizefit-service/pkg/config"
	"sizefit-service/pkg/logger"
)

// StartProfiling 启动 pyroscope 持续剖析; returns nil when disabled.
func StartProfiling(cfg config.ProfilingConfig) *pyroscope.Profiler {
	if !cfg.Enabled || cfg.ServerAddress == "" {
		return nil
	}
	name := cfg.ApplicationName
	if name == "" {
		name = "sizefit-service"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		Logger:          nil,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("pyroscope start failed server=%s error=%v", cfg.ServerAddress, err)
		return nil
	}
	logger.Infof("pyroscope profiling enabled server=%s app=%s", cfg.ServerAddress, name)
	return profiler
}
