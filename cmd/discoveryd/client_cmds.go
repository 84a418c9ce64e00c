package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbshrst/talos-discovery/pkg/client"
)

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	return client.NewClient(addr)
}

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Announce to the server and print the observed client IP",
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ip, err := c.Hello(ctx, clusterID, Version)
		if err != nil {
			return err
		}

		fmt.Printf("Client IP: %s\n", net.IP(ip))
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Publish an affiliate record",
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster")
		affiliateID, _ := cmd.Flags().GetString("affiliate")
		dataHex, _ := cmd.Flags().GetString("data")
		endpointsHex, _ := cmd.Flags().GetStringArray("endpoint")
		ttl, _ := cmd.Flags().GetInt64("ttl")

		data, err := hex.DecodeString(dataHex)
		if err != nil {
			return fmt.Errorf("invalid data: %w", err)
		}

		endpoints := make([][]byte, 0, len(endpointsHex))
		for _, e := range endpointsHex {
			ep, err := hex.DecodeString(e)
			if err != nil {
				return fmt.Errorf("invalid endpoint: %w", err)
			}
			endpoints = append(endpoints, ep)
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.AffiliateUpdate(ctx, clusterID, affiliateID, data, endpoints, ttl); err != nil {
			return err
		}

		fmt.Printf("Updated affiliate %s in cluster %s\n", affiliateID, clusterID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an affiliate record",
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster")
		affiliateID, _ := cmd.Flags().GetString("affiliate")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.AffiliateDelete(ctx, clusterID, affiliateID); err != nil {
			return err
		}

		fmt.Printf("Deleted affiliate %s from cluster %s\n", affiliateID, clusterID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a cluster's affiliates",
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		affiliates, err := c.List(ctx, clusterID)
		if err != nil {
			return err
		}

		fmt.Printf("Cluster %s: %d affiliate(s)\n", clusterID, len(affiliates))
		for _, a := range affiliates {
			fmt.Printf("  %s  data=%s  endpoints=%d\n", a.GetId(), truncatedHex(a.GetData()), len(a.GetEndpoints()))
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream membership events for a cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		stream, err := c.Watch(ctx, clusterID)
		if err != nil {
			return err
		}

		for {
			resp, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			kind := "state"
			if resp.GetDeleted() {
				kind = "deleted"
			}

			fmt.Printf("[%s] %d affiliate(s)\n", kind, len(resp.GetAffiliates()))
			for _, a := range resp.GetAffiliates() {
				fmt.Printf("  %s  data=%s\n", a.GetId(), truncatedHex(a.GetData()))
			}
		}
	},
}

// truncatedHex renders at most the first four bytes of an opaque payload.
func truncatedHex(data []byte) string {
	if len(data) == 0 {
		return "<empty>"
	}
	if len(data) > 4 {
		return hex.EncodeToString(data[:4]) + ".."
	}
	return hex.EncodeToString(data)
}

func init() {
	for _, cmd := range []*cobra.Command{helloCmd, updateCmd, deleteCmd, listCmd, watchCmd} {
		cmd.Flags().String("server", "127.0.0.1:3000", "Discovery server address")
		cmd.Flags().String("cluster", "", "Cluster ID")
		_ = cmd.MarkFlagRequired("cluster")
	}

	for _, cmd := range []*cobra.Command{updateCmd, deleteCmd} {
		cmd.Flags().String("affiliate", "", "Affiliate ID")
		_ = cmd.MarkFlagRequired("affiliate")
	}

	updateCmd.Flags().String("data", "", "Affiliate data as hex")
	updateCmd.Flags().StringArray("endpoint", nil, "Affiliate endpoint as hex (repeatable)")
	updateCmd.Flags().Int64("ttl", 60, "Record TTL in seconds")
}
