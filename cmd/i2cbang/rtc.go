package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
	"github.com/mklimuk/i2cbang/rtc"
)

var rtcCmd = cli.Command{
	Name:  "rtc",
	Usage: "talk to a DS3231 real time clock",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "address",
			Usage: "clock address",
			Value: 0x68,
		},
	},
	Subcommands: cli.Commands{
		&rtcDemoCmd,
		&rtcTimeCmd,
		&rtcSetCmd,
	},
}

func clockFrom(c *cli.Context) (*session, *rtc.DS3231, error) {
	s, err := sessionFrom(c)
	if err != nil {
		return nil, nil, err
	}
	clock := rtc.NewDS3231(s.bus,
		rtc.WithAddress(uint16(c.Uint("address"))),
		rtc.WithClockRate(s.dev.ClockRate),
		rtc.WithTimeout(s.dev.Timeout),
	)
	if err := clock.Device().Validate(); err != nil {
		_ = s.Close()
		return nil, nil, console.Exit(1, "%s", err)
	}
	return s, clock, nil
}

var rtcDemoCmd = cli.Command{
	Name:  "demo",
	Usage: "scan the bus, preset 00:01:02 and print seconds and time every interval",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of readings, 0 runs until interrupted",
			Value: 5,
		},
		&cli.DurationFlag{
			Name:  "interval",
			Value: time.Second,
		},
	},
	Action: func(c *cli.Context) error {
		s, clock, err := clockFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		scan(s)
		console.Print("")
		if err := clock.ZeroSeconds(c.Context); err != nil {
			return console.BusExit(err, "could not zero seconds")
		}
		if err := clock.WriteRegisters(c.Context, 0, []byte{0x00, 0x01, 0x02}); err != nil {
			return console.BusExit(err, "could not preset time")
		}
		return watch(c.Context, clock, c.Int("count"), c.Duration("interval"))
	},
}

// watch prints the seconds register and the raw time on every reading. A
// failed reading is reported and the loop goes on.
func watch(ctx context.Context, clock *rtc.DS3231, count int, interval time.Duration) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for i := 0; count == 0 || i < count; i++ {
		if sec, err := clock.Seconds(ctx); err != nil {
			console.Warnf("could not read seconds: %s", err)
		} else {
			console.Printf("Seconds: %02X\n", sec)
		}
		if raw, err := clock.RawTime(ctx); err != nil {
			console.Warnf("could not read time: %s", err)
		} else {
			console.Printf("Time: %02X:%02X:%02X\n\n", raw[2], raw[1], raw[0])
		}
		if count != 0 && i == count-1 {
			break
		}
		select {
		case <-ctx.Done():
			console.PInfof(console.PictoFinish, "interrupted")
			return nil
		case <-tick.C:
		}
	}
	return nil
}

var rtcTimeCmd = cli.Command{
	Name:  "time",
	Usage: "print the time of day",
	Action: func(c *cli.Context) error {
		s, clock, err := clockFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		tod, err := clock.Time(c.Context)
		if err != nil {
			return console.BusExit(err, "could not read time")
		}
		console.PInfof(console.PictoCalendar, "%s", formatTOD(tod))
		return nil
	},
}

var rtcSetCmd = cli.Command{
	Name:      "set",
	Usage:     "set the time of day, the host clock when no argument is given",
	ArgsUsage: "[HH:MM:SS]",
	Action: func(c *cli.Context) error {
		tod, err := parseTOD(c.Args().First(), time.Now())
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		s, clock, err := clockFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		if err := clock.SetTime(c.Context, tod); err != nil {
			return console.BusExit(err, "could not set time")
		}
		console.PInfof(console.PictoCalendar, "clock set to %s", formatTOD(tod))
		return nil
	},
}

func parseTOD(arg string, now time.Time) (time.Duration, error) {
	t := now
	if arg != "" {
		var err error
		if t, err = time.Parse(time.TimeOnly, arg); err != nil {
			return 0, fmt.Errorf("invalid time %q, expected HH:MM:SS", arg)
		}
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

func formatTOD(tod time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(tod/time.Hour), int(tod%time.Hour/time.Minute), int(tod%time.Minute/time.Second))
}
