// Command savetool inspects and maintains slot-addressed world saves from
// outside the game process: listing slots, dumping payloads, verifying
// checksums, and deleting stale saves.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/pkg/observability/log"
	"github.com/zeusync/worldlens/pkg/sequence"
	"github.com/zeusync/worldlens/savefile"
)

const (
	flagApp     = "app"
	flagCodec   = "codec"
	flagMeta    = "meta"
	flagVerbose = "verbose"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "savetool"
	app.Usage = "Inspect and maintain slot-addressed world saves"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     flagApp,
			Usage:    "application name the saves are stored under",
			Required: true,
		},
		&cli.StringFlag{
			Name:  flagCodec,
			Usage: "payload codec, json or yaml",
			Value: "json",
		},
		&cli.BoolFlag{
			Name:  flagVerbose,
			Usage: "log debug detail",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "list",
			Usage:  "List every save slot, newest first",
			Action: runList,
		},
		{
			Name:      "show",
			Usage:     "Print a slot's payload",
			ArgsUsage: "<slot>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  flagMeta,
					Usage: "print the slot metadata instead of the payload",
				},
			},
			Action: runShow,
		},
		{
			Name:   "verify",
			Usage:  "Recompute every slot's checksum",
			Action: runVerify,
		},
		{
			Name:      "delete",
			Usage:     "Remove a slot",
			ArgsUsage: "<slot>",
			Action:    runDelete,
		},
	}
	return app
}

func openManager(c *cli.Context) (*savefile.Manager, error) {
	level := log.LevelWarn
	if c.Bool(flagVerbose) {
		level = log.LevelDebug
	}
	var payloadCodec codec.Codec
	switch c.String(flagCodec) {
	case "json":
		payloadCodec = codec.JSON{}
	case "yaml":
		payloadCodec = codec.YAML{}
	default:
		return nil, fmt.Errorf("unknown codec %q", c.String(flagCodec))
	}
	return savefile.Open(savefile.Config{
		AppName: c.String(flagApp),
		Codec:   payloadCodec,
		Logger:  log.New(level),
	})
}

func slotArg(c *cli.Context) (string, error) {
	slot := c.Args().First()
	if slot == "" {
		return "", fmt.Errorf("slot name required")
	}
	return slot, nil
}

func runList(c *cli.Context) error {
	m, err := openManager(c)
	if err != nil {
		return err
	}
	metas, err := m.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no saves")
		return nil
	}
	fmt.Printf("%-20s %-19s %10s  %s\n", "SLOT", "SAVED AT (UTC)", "BYTES", "LABEL")
	lines := sequence.ToArray(sequence.From(metas), func(meta savefile.Meta) string {
		return fmt.Sprintf("%-20s %-19s %10d  %s", meta.Slot, meta.SavedAt.Format(time.DateTime), meta.Size, meta.Label)
	})
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func runShow(c *cli.Context) error {
	slot, err := slotArg(c)
	if err != nil {
		return err
	}
	m, err := openManager(c)
	if err != nil {
		return err
	}
	if c.Bool(flagMeta) {
		meta, err := m.Peek(slot)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(meta)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}
	payload, _, err := m.Load(slot)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(payload)
	return err
}

func runVerify(c *cli.Context) error {
	m, err := openManager(c)
	if err != nil {
		return err
	}
	results, err := m.Verify()
	if err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("%-20s FAILED: %v\n", res.Slot, res.Err)
			continue
		}
		fmt.Printf("%-20s ok\n", res.Slot)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d slots failed verification", failed, len(results))
	}
	return nil
}

func runDelete(c *cli.Context) error {
	slot, err := slotArg(c)
	if err != nil {
		return err
	}
	m, err := openManager(c)
	if err != nil {
		return err
	}
	if err := m.Delete(slot); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", slot)
	return nil
}
