// RetroMint 命令行入口
package main

func main() {
	Execute()
}
