// @title OptionScan API
// @version 1.0
// @description REST and websocket surface for the options detection and evaluation engine.
// @BasePath /
package main

//go:generate swag init -g cmd/scanner/docs.go -o docs
