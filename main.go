// The main package for the trendcrawl executable.
package main

import "github.com/JakeFAU/trending-crawler/cmd"

func main() {
	cmd.Execute()
}
