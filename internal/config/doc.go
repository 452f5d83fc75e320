// Package config manages the multy-cli configuration file.
//
// The file lists routers by a user-chosen name together with their
// credentials and polling settings, plus application preferences. It is
// stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/multy/config.yaml or $HOME/.config/multy/config.yaml
//   - macOS: $HOME/.config/multy/config.yaml
//   - Windows: %LOCALAPPDATA%\multy\config.yaml
//
// # Example
//
//	version: 1
//	devices:
//	    home:
//	        host: 192.168.212.1
//	        username: admin
//	        password_env: MULTY_PASSWORD
//	        poll_interval: 30s
//	        resources: [network-devices, mesh-nodes, wan-status]
//	preferences:
//	    default_device: home
//	    discover_timeout: 5
//	    listen_addr: 127.0.0.1:8765
//
// # Security
//
// Passwords may be written to the file, but password_env is preferred. The
// file is always written with 0600 permissions using an atomic rename.
package config
