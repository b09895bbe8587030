package directives_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/codewriter"
	"github.com/walteh/t4gen/pkg/directives"
	"github.com/walteh/t4gen/pkg/parser"
)

func TestMapTypeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "System.String"},
		{"bool", "System.Boolean"},
		{"float", "System.Single"},
		{"int", "System.Int32"},
		{"ulong", "System.UInt64"},
		{"string", "System.String"},
		{"System.DateTime", "System.DateTime"},
		{"MyType", "MyType"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, directives.MapTypeName(tt.in))
		})
	}
}

type paramTable map[[3]string]string

func (p paramTable) ResolveParameterValue(processor, directive, name string) (string, bool) {
	v, ok := p[[3]string{processor, directive, name}]
	return v, ok
}

func attrs(kv ...string) parser.Attributes {
	a := parser.Attributes{}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i], kv[i+1])
	}
	return a
}

func TestParameterProcessor(t *testing.T) {
	values := paramTable{
		{directives.ParameterProcessorName, "parameter", "Title"}: "Hi",
		{directives.ParameterProcessorName, "parameter", "Count"}: "5",
	}

	tests := []struct {
		name    string
		values  directives.ParameterValueResolver
		args    parser.Attributes
		want    string
		wantErr error
	}{
		{
			name: "mapped type",
			args: attrs("name", "Count", "type", "int"),
			want: "public System.Int32 Count { get; set; }\n",
		},
		{
			name: "missing type is string",
			args: attrs("Name", "Title"),
			want: "public System.String Title { get; set; }\n",
		},
		{
			name:   "string value initializer",
			values: values,
			args:   attrs("name", "Title"),
			want:   "public System.String Title { get; set; } = \"Hi\";\n",
		},
		{
			name:   "converted value initializer",
			values: values,
			args:   attrs("name", "Count", "type", "int"),
			want: "public System.Int32 Count { get; set; } = (System.Int32)System.Convert.ChangeType(\"5\", " +
				"typeof(System.Int32), System.Globalization.CultureInfo.InvariantCulture);\n",
		},
		{
			name:    "missing name",
			args:    attrs("type", "int"),
			wantErr: directives.ErrMissingParameterName,
		},
		{
			name:    "empty name",
			args:    attrs("name", ""),
			wantErr: directives.ErrMissingParameterName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := directives.NewParameterProcessor()
			if tt.values != nil {
				p.SetParameterResolver(tt.values)
			}
			w := codewriter.New()

			require.NoError(t, p.Initialize(ctx))
			require.NoError(t, p.StartProcessingRun(ctx, w, "", nil))
			err := p.ProcessDirective(ctx, w, "parameter", tt.args)
			require.NoError(t, p.FinishProcessingRun(ctx))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Empty(t, w.String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.String())
			assert.Nil(t, p.ImportsForProcessingRun())
			assert.Nil(t, p.ReferencesForProcessingRun())
		})
	}
}

func TestParameterProcessor_Supports(t *testing.T) {
	p := directives.NewParameterProcessor()
	assert.True(t, p.IsDirectiveSupported("parameter"))
	assert.True(t, p.IsDirectiveSupported("Parameter"))
	assert.False(t, p.IsDirectiveSupported("template"))
}

type stubAssemblies map[string]string

func (s stubAssemblies) ResolveAssemblyReference(ctx context.Context, reference string) (string, error) {
	return s[reference], nil
}

type nopProcessor struct {
	directives.Base
}

func (nopProcessor) IsDirectiveSupported(name string) bool { return name == "nop" }
func (nopProcessor) ProcessDirective(ctx context.Context, w *codewriter.Writer, name string, args parser.Attributes) error {
	return nil
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	table directives.TypeTable
}

func (c *countingLoader) LoadProcessor(ctx context.Context, location, typeName string) (directives.Factory, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.table.LoadProcessor(ctx, location, typeName)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("parameter processor is built in", func(t *testing.T) {
		r := directives.NewRegistry()
		p, err := r.New(ctx, directives.ParameterProcessorName)
		require.NoError(t, err)
		assert.IsType(t, &directives.ParameterProcessor{}, p)
		assert.Equal(t, []string{directives.ParameterProcessorName}, r.Names())
	})

	t.Run("unknown processor", func(t *testing.T) {
		r := directives.NewRegistry()
		_, err := r.New(ctx, "Nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, directives.ErrProcessorNotRegistered))
		assert.Equal(t, "no directive processor registered as 'Nope'", err.Error())
	})

	t.Run("unresolvable assembly", func(t *testing.T) {
		r := directives.NewRegistry(directives.WithAssemblyResolver(stubAssemblies{}))
		r.AddExternal("Ext", "Acme.NopProcessor", "Acme.dll")
		_, err := r.New(ctx, "Ext")
		require.Error(t, err)
		assert.True(t, errors.Is(err, directives.ErrAssemblyNotResolved))
		assert.Equal(t, "could not resolve assembly 'Acme.dll' for directive processor 'Ext'", err.Error())
	})

	t.Run("missing type in table", func(t *testing.T) {
		r := directives.NewRegistry(
			directives.WithAssemblyResolver(stubAssemblies{"Acme.dll": "/lib/Acme.dll"}),
			directives.WithLoader(directives.TypeTable{}),
		)
		r.AddExternal("Ext", "Acme.NopProcessor", "Acme.dll")
		_, err := r.New(ctx, "Ext")
		require.Error(t, err)
		assert.True(t, errors.Is(err, directives.ErrTypeNotFound))
	})

	t.Run("external processors resolve once for concurrent runs", func(t *testing.T) {
		loader := &countingLoader{table: directives.TypeTable{
			"Acme.NopProcessor": func() directives.Processor { return &nopProcessor{} },
		}}
		r := directives.NewRegistry(
			directives.WithAssemblyResolver(stubAssemblies{"Acme.dll": "/lib/Acme.dll"}),
			directives.WithLoader(loader),
		)
		r.AddExternal("Ext", "Acme.NopProcessor", "Acme.dll")

		p, err := r.New(ctx, "Ext")
		require.NoError(t, err)
		assert.True(t, p.IsDirectiveSupported("nop"))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.New(ctx, "Ext")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, loader.calls)
		assert.Equal(t, []string{"Ext", directives.ParameterProcessorName}, r.Names())
	})

	t.Run("register replaces", func(t *testing.T) {
		r := directives.NewRegistry()
		r.Register("Custom", func() directives.Processor { return &nopProcessor{} })
		p, err := r.New(ctx, "Custom")
		require.NoError(t, err)
		assert.IsType(t, &nopProcessor{}, p)
	})
}
