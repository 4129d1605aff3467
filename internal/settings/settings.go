package settings

import "fmt"

const (
	CmdName   = "privtrace"
	EnvPrefix = "PRIVTRACE"

	DefaultOutFile = CmdName + ".out.%p"
)

var (
	SocketPath = fmt.Sprintf("/tmp/%s.sock", CmdName)
	ConfigFile = fmt.Sprintf("%s.yaml", CmdName)
)
