package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/service"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect PATH",
		Short: "Print the backend that owns a model artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newBackends()
			if err != nil {
				return err
			}
			kind, err := reg.Detect(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), kind)
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect PATH",
		Short: "Load a model and list its inputs, weights and outputs",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectHandler,
	}
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	m, kind, err := loadModel(args[0])
	if err != nil {
		return err
	}
	defer m.Close()

	var data [][]string

	for i := range m.NumInputs() {
		name, err := m.InputName(i)
		if err != nil {
			return err
		}
		row, err := slotRow("input", name, m)
		if err != nil {
			return err
		}
		data = append(data, row)
	}

	for i := range m.NumWeights() {
		name, err := m.WeightName(i)
		if err != nil {
			return err
		}
		row, err := slotRow("weight", name, m)
		if err != nil {
			return err
		}
		data = append(data, row)
	}

	for i := range m.NumOutputs() {
		info, err := m.OutputInfo(i)
		if err != nil {
			return err
		}
		data = append(data, []string{"output", fmt.Sprint(i), formatShape(info.Shape), info.DType.String()})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend: %s\n\n", kind)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ROLE", "NAME", "SHAPE", "DTYPE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func slotRow(role, name string, m backend.Model) ([]string, error) {
	info, err := m.InputInfo(name)
	if err != nil {
		return nil, err
	}
	return []string{role, name, formatShape(info.Shape), info.DType.String()}, nil
}

func formatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run PATH",
		Short: "Run a model once and print its outputs as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandler,
	}
	runCmd.Flags().String("inputs", "", "JSON file mapping input names to {\"shape\", \"data\"}")
	runCmd.MarkFlagRequired("inputs")
	return runCmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	inputsPath, _ := cmd.Flags().GetString("inputs")

	raw, err := os.ReadFile(inputsPath)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	var inputs map[string]service.Tensor
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return fmt.Errorf("parse inputs %s: %w", inputsPath, err)
	}

	m, _, err := loadModel(args[0])
	if err != nil {
		return err
	}
	defer m.Close()

	outputs, err := service.Execute(m, inputs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"outputs": outputs})
}

func loadModel(path string) (backend.Model, backend.Kind, error) {
	reg, err := newBackends()
	if err != nil {
		return nil, "", err
	}
	return reg.Load(path)
}
