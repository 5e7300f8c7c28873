package main

import "github.com/Omntg/tv-supabase-integration/cmd"

func main() {
	cmd.Execute()
}
