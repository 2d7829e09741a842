// NovusGraph CLI : exécute des scripts d'instructions YAML.
//
// Usage :
//
//	novusgraph run script.yaml --ns test --db test
//	novusgraph run - < script.yaml          (lecture sur l'entrée standard)
//	novusgraph run script.yaml --store file:data.ngs
//	novusgraph version
//
// Les réponses sont affichées en JSON indenté.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur : %v\n", err)
		os.Exit(1)
	}
}
