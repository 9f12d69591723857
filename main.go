// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modship/modship/cmd/modship"

func main() {
	cmd.Execute()
}
