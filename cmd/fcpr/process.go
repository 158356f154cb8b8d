package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/raman-lab/fcpr/internal/table"
	"github.com/raman-lab/fcpr/internal/tensor"
)

func (e *env) runProcess(args []string) int {
	fs := e.newFlagSet("process")
	order := fs.String("order", e.cfg.GetEigenOrder().String(), "Eigenvalue order: ascending, descending or magnitude")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(pos) < 1 || len(pos) > 2 {
		fmt.Fprintln(e.stderr, "Usage: fcpr process <input.xlsx|csv> [output]")
		return exitUsage
	}

	input := pos[0]
	output := table.DefaultOutputPath(input)
	if len(pos) == 2 {
		output = pos[1]
	}

	if _, err := os.Stat(input); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(e.stderr, "Error: Input file '%s' does not exist\n", input)
		return exitError
	}

	o, err := tensor.ParseOrder(*order)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitUsage
	}

	if err := processFile(input, output, o); err != nil {
		fmt.Fprintf(e.stderr, "Error processing file: %v\n", err)
		return exitError
	}
	fmt.Fprintf(e.stdout, "Results saved to: %s\n", output)
	return exitOK
}

func processFile(input, output string, order tensor.Order) error {
	sheet, err := table.Read(input)
	if err != nil {
		return err
	}
	p, err := table.Process(sheet, order)
	if err != nil {
		return err
	}
	return table.Write(output, p)
}
