package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"stationplan/internal/api"
	"stationplan/internal/config"
	"stationplan/internal/logger"
	"stationplan/internal/model"
	"stationplan/internal/network"
	"stationplan/internal/opt"
)

func newSolveCmd(cfgPath *string) *cobra.Command {
	var (
		input string
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute a schedule from a request file and print the result",
		Long: "Reads a schedule request (JSON, or YAML for .yaml/.yml files; '-' reads JSON from stdin)\n" +
			"with inline subwayConnections and prints {max_score, min_fee, schedule}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			req, err := readRequest(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			res, err := solve(req, cfg.Limits)
			if err != nil {
				return err
			}
			if stats {
				logger.NewWithWriter(cmd.ErrOrStderr(), "solve").Infow("solved", map[string]any{
					"outcome":     res.Stats.Outcome(),
					"tasks":       res.Stats.Tasks,
					"stations":    res.Stats.Stations,
					"reachable":   res.Stats.Reachable,
					"transitions": res.Stats.Transitions,
					"durationMs":  float64(res.Stats.Duration.Microseconds()) / 1000,
				})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(model.ScheduleResponse{
				MaxScore: res.MaxScore,
				MinFee:   model.Fee(res.MinFee),
				Schedule: res.Schedule,
			})
		},
	}
	cmd.Flags().StringVarP(&input, "file", "f", "-", "request file")
	cmd.Flags().BoolVar(&stats, "stats", false, "log optimizer statistics to stderr")
	return cmd
}

func readRequest(path string, stdin io.Reader) (model.ScheduleRequest, error) {
	var req model.ScheduleRequest
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &req)
	default:
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func solve(req model.ScheduleRequest, lim config.LimitsConfig) (opt.Result, error) {
	if req.NetworkID != "" {
		return opt.Result{}, errors.New("solve needs inline subwayConnections; saved networks are only available through the API")
	}
	if err := api.ValidateSchedule(req, lim); err != nil {
		return opt.Result{}, fmt.Errorf("invalid request: %w", err)
	}
	return opt.Plan(api.ToTasks(req.Tasks), api.ToConnections(req.SubwayConnections), network.Location(req.StartingLocation)), nil
}
