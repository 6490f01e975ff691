package domain_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/davidleathers/qaudit-backend/internal/"

// sourceFiles returns the non-test Go files under dir
func sourceFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func getFileImports(t *testing.T, filename string) []string {
	t.Helper()
	node, err := parser.ParseFile(token.NewFileSet(), filename, nil, parser.ImportsOnly)
	require.NoError(t, err)

	var imports []string
	for _, imp := range node.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}
	return imports
}

// TestNoDomainCrossDependencies ensures the aggregates don't import each other
func TestNoDomainCrossDependencies(t *testing.T) {
	domains := []string{"plan", "risk", "sampling"}

	for _, domain := range domains {
		t.Run(domain, func(t *testing.T) {
			for _, file := range sourceFiles(t, domain) {
				for _, imp := range getFileImports(t, file) {
					for _, other := range domains {
						if other != domain && imp == modulePath+"domain/"+other {
							t.Errorf("domain %s imports %s (violation in %s)", domain, other, file)
						}
					}
				}
			}
		})
	}
}

// TestDomainNotDependOnInfrastructure ensures the domain layer stays free of
// storage, transport and logging concerns
func TestDomainNotDependOnInfrastructure(t *testing.T) {
	forbiddenImports := []string{
		"database/sql",
		"github.com/lib/pq",
		"github.com/jackc/pgx",
		"github.com/redis/go-redis",
		"github.com/xuri/excelize",
		"go.uber.org/zap",
		modulePath + "infrastructure",
		modulePath + "service",
		modulePath + "api",
	}
	// driver.Valuer and sql.Scanner are interface contracts, not a connection
	allowed := map[string]bool{"database/sql/driver": true}

	files := sourceFiles(t, ".")
	require.NotEmpty(t, files)
	for _, file := range files {
		for _, imp := range getFileImports(t, file) {
			if allowed[imp] {
				continue
			}
			for _, forbidden := range forbiddenImports {
				if strings.HasPrefix(imp, forbidden) {
					t.Errorf("domain file %s imports infrastructure: %s", file, imp)
				}
			}
		}
	}
}

// TestServicesDependOnPorts ensures services reach storage only through
// their repository interfaces
func TestServicesDependOnPorts(t *testing.T) {
	for _, service := range []string{"planning", "risk", "sampling"} {
		t.Run(service, func(t *testing.T) {
			for _, file := range sourceFiles(t, filepath.Join("..", "service", service)) {
				for _, imp := range getFileImports(t, file) {
					if strings.HasPrefix(imp, modulePath+"infrastructure") || strings.HasPrefix(imp, modulePath+"api") {
						t.Errorf("service %s imports %s (violation in %s)", service, imp, file)
					}
				}
			}
		})
	}
}

// TestValueObjectsAreImmutable ensures value objects don't have setters
func TestValueObjectsAreImmutable(t *testing.T) {
	for _, file := range sourceFiles(t, "values") {
		node, err := parser.ParseFile(token.NewFileSet(), file, nil, 0)
		require.NoError(t, err)

		ast.Inspect(node, func(n ast.Node) bool {
			if fn, ok := n.(*ast.FuncDecl); ok && fn.Recv != nil && strings.HasPrefix(fn.Name.Name, "Set") {
				t.Errorf("value object in %s has setter method: %s", file, fn.Name.Name)
			}
			return true
		})
	}
}
