package wait

import (
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/privtrace/internal/settings"
	"github.com/maxgio92/privtrace/pkg/ingest"
)

const (
	CmdName = "wait"

	retryInterval = 500 * time.Millisecond
)

var ErrTimeout = errors.New("timeout waiting for tracer readiness")

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               CmdName,
		Short:             fmt.Sprintf("Wait for the %s server to be ready", settings.CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.socketPath, "socket-path", "s", settings.SocketPath, fmt.Sprintf("Path to the %s socket file", settings.CmdName))
	cmd.Flags().DurationVar(&o.timeout, "timeout", time.Second*120, "Timeout")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.Setup(cmd, CmdName); err != nil {
		return err
	}
	socketPath := o.Config.GetString("socket-path")
	timeout := o.Config.GetDuration("timeout")

	start := time.Now()
	o.Logger.Info().Msg("waiting for the tracer to be ready")

	for {
		if time.Since(start) >= timeout {
			return ErrTimeout
		}

		ready, err := probe(socketPath)
		if err != nil {
			return err
		}
		if ready {
			o.Logger.Info().Msg("tracer is ready")
			return nil
		}

		select {
		case <-o.Ctx.Done():
			return o.Ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// probe connects to the socket and reads the ready message. Transient
// failures report not ready; only unrecoverable conditions are errors.
func probe(socketPath string) (bool, error) {
	info, err := os.Stat(socketPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "error checking socket")
	}

	if info.Mode()&os.ModeSocket == 0 {
		return false, errors.Errorf("path exists but is not a Unix socket: %s", socketPath)
	}

	conn, err := net.DialTimeout("unix", socketPath, retryInterval)
	if err != nil {
		if errors.Is(err, syscall.EACCES) {
			return false, errors.Wrap(err, "failed connecting")
		}
		return false, nil
	}
	defer conn.Close()

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(retryInterval))

	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return false, nil
	}

	return buf[0] == ingest.ReadyMsg, nil
}
