package config

import (
	"fmt"
	"os"
)

func Template() string {
	return defaultTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o644)
}

const defaultTemplate = `# genctl pre-build configuration
interpreter = "python"
path_style = "native"
# fail_fast | continue | ignore
policy = "fail_fast"
preflight = true
changed_only = false
steps = ["network", "sensor"]
env = []
local_config = "bms.yaml"

# dirs are relative to the parent of the project directory,
# network.config is relative to network.dir
[network]
dir = "gophercan-lib/network_autogen"
script = "autogen.py"
config = "configs/go4-24e.yaml"

[sensor]
dir = "Gopher_Sense"
script = "gsense_auto_gen.py"

[history]
enabled = true
path = ".genctl/history.db"

[metrics]
textfile = ""

[tracing]
endpoint = ""
insecure = true

[watch]
debounce = "500ms"
`
