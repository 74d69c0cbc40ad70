// Command jitdump assembles a JSON-described basic-block program
// through the jit package and prints the resulting machine code as
// hex bytes plus an independent disassembly listing, for inspecting
// what the encoder/emitter/branch-fixup pipeline actually produces.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"golang.org/x/arch/x86/x86asm"

	"x86jit/codebuf"
	"x86jit/jit"
)

func dumpProgram(path string) error {
	blocks, err := loadProgram(path)
	if err != nil {
		return err
	}

	buf := codebuf.New(256)
	em := jit.NewEmitter(buf, jit.DefaultOptions())
	for _, bb := range blocks {
		em.EmitBlock(bb)
	}
	em.Backpatch()

	code := buf.Bytes()
	fmt.Printf("%d bytes\n\n", len(code))
	for off := 0; off < len(code); {
		inst, err := x86asm.Decode(code[off:], 32)
		if err != nil {
			fmt.Printf("%04x: %x (decode error: %v)\n", off, code[off:], err)
			break
		}
		fmt.Printf("%04x: % -24x %s\n", off, code[off:off+inst.Len], x86asm.GNUSyntax(inst, uint64(off), nil))
		off += inst.Len
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "jitdump"
	app.Usage = "assemble a JSON basic-block program and disassemble the result"
	app.Commands = []cli.Command{
		{
			Name:      "dump",
			Usage:     "assemble a program file and print hex + disassembly",
			ArgsUsage: "program.json",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return cli.NewExitError("missing program.json argument", 1)
				}
				if err := dumpProgram(c.Args().First()); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				return nil
			},
		},
	}
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
