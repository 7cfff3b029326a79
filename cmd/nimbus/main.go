// Nimbus - multi-cloud inventory with compliance scoring.
package main

func main() {
	Execute()
}
