package main

import (
	"fmt"

	"github.com/loomwork/loom/internal/buildinfo"
)

func main() {
	info := buildinfo.GetInfo()
	fmt.Println(info.String())
}
