package main

import "time"

// APIFlags select and configure the daemon connection.
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
	CACert     string
	Insecure   bool
	Token      string
	User       string
	Password   string
}

type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	PidFile    string
	LogFile    string
}
