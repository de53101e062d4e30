// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/warting/appfunctions-go/appfn"
	"github.com/warting/appfunctions-go/conformance"
)

func main() {
	inventory, err := conformance.NewInventory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building inventory: %v\n", err)
		os.Exit(1)
	}

	dispatcher := appfn.NewDispatcher(inventory)
	dispatcher.SetDebugErrors(true)
	if err := conformance.NewService().Register(dispatcher); err != nil {
		fmt.Fprintf(os.Stderr, "registering handlers: %v\n", err)
		os.Exit(1)
	}

	server := appfn.NewServer(dispatcher)
	server.SetCompressionLevel(3)

	if len(os.Args) > 2 && os.Args[1] == "--unix" {
		path := os.Args[2]
		os.Remove(path)

		listener, err := net.Listen("unix", path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to listen on unix socket: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("UNIX:%s\n", path)
		os.Stdout.Sync()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		go func() {
			<-sigCh
			listener.Close()
		}()

		for {
			conn, err := listener.Accept()
			if err != nil {
				break
			}
			server.Serve(conn, conn)
			conn.Close()
		}
		os.Remove(path)
	} else {
		server.RunStdio()
	}
}
