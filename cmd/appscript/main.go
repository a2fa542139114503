// Command appscript drives Android apps through an Appium server.
package main

import "github.com/devicelab-dev/appscript/pkg/cli"

func main() {
	cli.Execute()
}
