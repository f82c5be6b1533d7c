// internal/web/build_info.go
package web

import (
    "runtime"
    "runtime/debug"

    "github.com/gin-gonic/gin"
)

// BuildInfo holds build-time information
type BuildInfo struct {
    Version    string   `json:"version"`
    GitCommit  string   `json:"git_commit"`
    BuildTime  string   `json:"build_time"`
    GoVersion  string   `json:"go_version"`
    GoOS       string   `json:"go_os"`
    GoArch     string   `json:"go_arch"`
    ModuleInfo []Module `json:"modules"`
}

type Module struct {
    Path    string `json:"path"`
    Version string `json:"version"`
}

// These variables will be set at build time using -ldflags
var (
    Version   = "dev"
    GitCommit = "unknown"
    BuildTime = "unknown"
)

// getBuildInfo returns build and dependency information
func (s *Server) getBuildInfo(c *gin.Context) {
    buildInfo := BuildInfo{
        Version:    Version,
        GitCommit:  GitCommit,
        BuildTime:  BuildTime,
        GoVersion:  runtime.Version(),
        GoOS:       runtime.GOOS,
        GoArch:     runtime.GOARCH,
        ModuleInfo: getModuleInfo(),
    }

    c.JSON(200, gin.H{"data": buildInfo})
}

func getModuleInfo() []Module {
    info, ok := debug.ReadBuildInfo()
    if !ok {
        return nil
    }

    modules := make([]Module, 0, len(info.Deps))
    for _, dep := range info.Deps {
        modules = append(modules, Module{
            Path:    dep.Path,
            Version: dep.Version,
        })
    }
    return modules
}
