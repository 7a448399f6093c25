package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"

	"github.com/mit-pdos/go-fatfs/diag"
	"github.com/mit-pdos/go-fatfs/fs"
	"github.com/mit-pdos/go-fatfs/mkfs"
	"github.com/mit-pdos/go-fatfs/util"
)

func main() {
	c, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := newApp(c).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(c *Config) *cli.App {
	return &cli.App{
		Name:  appName,
		Usage: "inspect and modify file system images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path of the disk image",
				Value:   c.Image,
			},
			&cli.Uint64Flag{
				Name:  "debug",
				Usage: "debug print level",
				Value: c.Debug,
			},
		},
		Before: func(ctx *cli.Context) error {
			util.Debug = ctx.Uint64("debug")
			return nil
		},
		Commands: []*cli.Command{{
			Name:      "mkfs",
			Usage:     "create a new image",
			ArgsUsage: "IMAGE BLOCKS",
			Action:    makeImage,
		}, {
			Name:  "info",
			Usage: "print the volume geometry and free space",
			Flags: []cli.Flag{&cli.StringFlag{
				Name:  "format",
				Usage: "output format: text or yaml",
				Value: c.Format,
			}},
			Action: withVolume(printInfo),
		}, {
			Name:   "ls",
			Usage:  "list files",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				return diag.PrintList(ctx.App.Writer, v)
			}),
		}, {
			Name:      "put",
			Usage:     "copy a host file into the image",
			ArgsUsage: "HOSTFILE [NAME]",
			Action:    withVolume(putFile),
		}, {
			Name:      "cat",
			Usage:     "print the contents of a file",
			ArgsUsage: "NAME",
			Action:    withVolume(catFile),
		}, {
			Name:      "rm",
			Usage:     "delete a file",
			ArgsUsage: "NAME",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				name, err := arg(ctx, 0, "NAME")
				if err != nil {
					return err
				}
				return v.Delete(name)
			}),
		}, {
			Name:  "wipe",
			Usage: "delete every file",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				return v.EraseAll()
			}),
		}, {
			Name:      "chain",
			Usage:     "list the data blocks of a file",
			ArgsUsage: "NAME",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				name, err := arg(ctx, 0, "NAME")
				if err != nil {
					return err
				}
				return diag.PrintChain(ctx.App.Writer, v, name)
			}),
		}, {
			Name:      "dump",
			Usage:     "hex dump the data blocks of a file",
			ArgsUsage: "NAME",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				name, err := arg(ctx, 0, "NAME")
				if err != nil {
					return err
				}
				return diag.DumpFile(ctx.App.Writer, v, name)
			}),
		}},
	}
}

func arg(ctx *cli.Context, i int, name string) (string, error) {
	if ctx.NArg() <= i {
		return "", fmt.Errorf("missing required argument: %s", name)
	}
	return ctx.Args().Get(i), nil
}

// withVolume mounts the image named by --image around f.
func withVolume(f func(*fs.Volume, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		image := ctx.String("image")
		if image == "" {
			return errors.New("no image: pass --image or set FATFS_IMAGE")
		}
		v, err := fs.Mount(image)
		if err != nil {
			return err
		}
		err = f(v, ctx)
		if uerr := v.Unmount(); err == nil {
			err = uerr
		}
		return err
	}
}

func makeImage(ctx *cli.Context) error {
	image, err := arg(ctx, 0, "IMAGE")
	if err != nil {
		return err
	}
	s, err := arg(ctx, 1, "BLOCKS")
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing block count: %w", err)
	}
	return mkfs.Create(image, n)
}

func printInfo(v *fs.Volume, ctx *cli.Context) error {
	info, err := v.Info()
	if err != nil {
		return err
	}
	switch format := ctx.String("format"); format {
	case "text":
		_, err = fmt.Fprint(ctx.App.Writer, info.String())
		return err
	case "yaml":
		data, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		_, err = ctx.App.Writer.Write(data)
		return err
	default:
		return fmt.Errorf("invalid format `%s`", format)
	}
}

func putFile(v *fs.Volume, ctx *cli.Context) error {
	host, err := arg(ctx, 0, "HOSTFILE")
	if err != nil {
		return err
	}
	name := filepath.Base(host)
	if ctx.NArg() > 1 {
		name = ctx.Args().Get(1)
	}
	data, err := ioutil.ReadFile(host)
	if err != nil {
		return err
	}
	if err := v.Create(name); err != nil {
		return err
	}
	fd, err := v.Open(name)
	if err != nil {
		return err
	}
	n, err := v.Write(fd, data)
	if cerr := v.Close(fd); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.App.Writer, "Wrote file '%s' (%d/%d bytes)\n", name, n, len(data))
	return err
}

func catFile(v *fs.Volume, ctx *cli.Context) error {
	name, err := arg(ctx, 0, "NAME")
	if err != nil {
		return err
	}
	fd, err := v.Open(name)
	if err != nil {
		return err
	}
	data, err := readAll(v, fd)
	if cerr := v.Close(fd); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(data)
	return err
}

func readAll(v *fs.Volume, fd fs.Fd) ([]byte, error) {
	size, err := v.Stat(fd)
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	n, err := v.Read(fd, data)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}
