// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type serverView struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Version   string `json:"version" yaml:"version"`
	Heartbeat int64  `json:"heartbeat_ns" yaml:"heartbeat_ns"`
	Latency   string `json:"latency" yaml:"latency"`
}

func (v serverView) header() []string { return []string{"ENDPOINT", "VERSION", "HEARTBEAT", "LATENCY"} }
func (v serverView) rows() [][]string {
	return [][]string{{v.Endpoint, v.Version, strconv.FormatInt(v.Heartbeat, 10), v.Latency}}
}

func newHeartbeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "heartbeat",
		Aliases: []string{"ping"},
		Short:   "Check that the server is reachable and report its version",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			start := time.Now()
			beat, err := s.client.Heartbeat(ctx)
			if err != nil {
				return err
			}
			latency := time.Since(start)
			ver, err := s.client.Version(ctx)
			if err != nil {
				return err
			}
			return render(cmd, serverView{
				Endpoint:  s.client.Endpoint(),
				Version:   ver,
				Heartbeat: beat,
				Latency:   latency.Round(time.Microsecond).String(),
			})
		},
	}
}
