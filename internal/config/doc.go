// Package config provides configuration management for bootctl.
//
// Two sources are involved:
//
//   - Settings come from BOOTCTL_* environment variables, every one of which
//     is optional. The unit file of the service manager is the usual place to
//     set them.
//   - The boot sequence is declared in a YAML phase file.
//
// # Phase file layers
//
// The boot sequence is loaded and merged in the following order:
//
//  1. Built-in unit defaults (maxAttempts 3, timeout 60s, delay 5s, health started)
//  2. The main phase file (BOOTCTL_PHASES_FILE, default /etc/bootctl/phases.yaml)
//  3. Drop-ins (*.yaml, *.yml in BOOTCTL_PHASES_DIR, default /etc/bootctl/phases.d),
//     applied in lexical order
//
// A drop-in phase with the same name as an existing one replaces it in place;
// new phases are appended. Defaults are overridden field by field.
//
// # Phase file structure
//
//	defaults:
//	  maxAttempts: 3
//	  timeout: 60s
//	  delay: 5s
//	  health: started
//
//	phases:
//	  - name: core
//	    severity: critical
//	    units:
//	      - id: systemd-journald
//	      - id: dbus
//	  - name: network
//	    severity: critical
//	    commands:
//	      - udevadm settle --timeout=30
//	    units:
//	      - id: systemd-networkd
//	        health: healthy
//	        healthCommand: networkctl status --no-pager
//	  - name: workloads
//	    severity: degraded
//	    workload: true
//	    parallel: true
//	    units:
//	      - kind: container
//	        id: mqtt
//	        health: healthy
//	        timeout: 120s
//
// Phase ordinals follow list order. Severity is one of critical, degraded or
// informational. Unit kind is service (default) or container.
package config
