package banner

import (
	"fmt"

	"atelier/pkg/config"
)

const banner = `
 █████╗ ████████╗███████╗██╗     ██╗███████╗██████╗
██╔══██╗╚══██╔══╝██╔════╝██║     ██║██╔════╝██╔══██╗
███████║   ██║   █████╗  ██║     ██║█████╗  ██████╔╝
██╔══██║   ██║   ██╔══╝  ██║     ██║██╔══╝  ██╔══██╗
██║  ██║   ██║   ███████╗███████╗██║███████╗██║  ██║
╚═╝  ╚═╝   ╚═╝   ╚══════╝╚══════╝╚═╝╚══════╝╚═╝  ╚═╝
`

// PrintWithEff prints the startup banner using the effective config so the
// operator can see at a glance where values came from and what is enabled.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST   /v1/projects                - Create a project")
	fmt.Println("GET    /v1/projects                - List projects")
	fmt.Println("GET    /v1/projects/{id}           - Get a project")
	fmt.Println("DELETE /v1/projects/{id}           - Delete a project")
	fmt.Println("POST   /v1/projects/{id}/messages  - Submit a message (async reply)")
	fmt.Println("GET    /v1/projects/{id}/messages  - List the conversation")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/projects' -d '{\"name\":\"demo\"}'\n", addr)
	fmt.Printf("curl -X POST 'http://localhost%s/v1/projects/<id>/messages' -d '{\"text\":\"build me a button\"}'\n", addr)

	fmt.Println("\n== Production? ================================================")
	be := 0
	fe := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}

	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if eff.Config != nil {
		fmt.Printf("- Generation: %s (%s)\n", eff.Config.Generation.Provider, eff.Config.Generation.Model)
		if eff.Config.Retention.Enabled {
			fmt.Printf("- Retention: enabled (cron=%s)\n", eff.Config.Retention.Cron)
		} else {
			fmt.Println("- Retention: disabled")
		}
	}

	fmt.Println("\n== Logs: ======================================================")
}
