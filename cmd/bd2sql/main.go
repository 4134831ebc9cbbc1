// Command bd2sql executes a SQL script against a bd2 engine directory
// and prints the JSON result envelope per statement, mirroring the
// flag+log CLI idiom of camdbinit (see DESIGN.md).
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/Jochuuuu/PVSProyectoB/pkg/engine"
)

func main() {
	dir := flag.String("dir", "./data", "base directory for table and index files")
	script := flag.String("script", "", "path to a SQL script file (default: read stdin)")
	flag.Parse()

	var sql []byte
	var err error
	if *script != "" {
		sql, err = os.ReadFile(*script)
	} else {
		sql, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		log.Fatalf("bd2sql: read input: %v", err)
	}

	e, err := engine.Open(*dir)
	if err != nil {
		log.Fatalf("bd2sql: open %s: %v", *dir, err)
	}
	defer e.Close()

	results := e.Exec(string(sql))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			log.Fatalf("bd2sql: encode result: %v", err)
		}
	}
}
