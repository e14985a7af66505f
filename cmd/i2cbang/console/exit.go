package console

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang"
)

// Exit codes of failed bus transactions.
const (
	ExitFailure    = 1
	ExitNoResponse = 2
	ExitTimeout    = 3
	ExitProtocol   = 4
	ExitBusInit    = 5
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// BusExit reports err with an exit code telling the bus failure apart.
func BusExit(err error, msg string, args ...interface{}) cli.ExitCoder {
	code := ExitFailure
	switch {
	case errors.Is(err, i2cbang.ErrNoResponse):
		code = ExitNoResponse
	case errors.Is(err, i2cbang.ErrTimeout):
		code = ExitTimeout
	case errors.Is(err, i2cbang.ErrProtocol):
		code = ExitProtocol
	case errors.Is(err, i2cbang.ErrInit):
		code = ExitBusInit
	}
	return cli.Exit(fmt.Sprintf("%s: %s", fmt.Sprintf(msg, args...), Red(err)), code)
}
