package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/weberc2/blockfs/pkg/device"
	"github.com/weberc2/blockfs/pkg/fs"
	"github.com/weberc2/blockfs/pkg/shell"
)

func main() {
	app := &cli.App{
		Name:  "blockfs",
		Usage: "interactive shell over a single-file block filesystem",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "host directory the `set` command copies in from",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage: "host directory holding the container image; also " +
					"the `get` command's destination",
			},
			&cli.StringFlag{
				Name:     "ways",
				Aliases:  []string{"w"},
				Usage:    "\"create\" a fresh container or \"open\" an existing one",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "yaml config file",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	config, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	image := config.Image
	if target := c.String("target"); target != "" || image == "" {
		image = filepath.Join(target, "fs.img")
	}

	var fsys *fs.FileSystem
	var dev *device.File
	switch ways := c.String("ways"); ways {
	case "create":
		dev, err = device.CreateFile(image, config.TotalBlocks)
		if err != nil {
			return err
		}
		fsys, err = fs.Format(dev, config.TotalBlocks, config.InodeBitmapBlocks)
	case "open":
		dev, err = device.OpenFile(image)
		if err != nil {
			return err
		}
		fsys, err = fs.Open(dev)
	default:
		return fmt.Errorf("unknown way `%s`: want \"create\" or \"open\"", ways)
	}
	if err != nil {
		dev.Close()
		return err
	}
	defer dev.Close()
	defer fsys.Close()

	sh := shell.New(fsys, os.Stdout, c.String("source"), c.String("target"))
	return sh.Run(os.Stdin)
}
