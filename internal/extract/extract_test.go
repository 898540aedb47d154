package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicReport = `<!DOCTYPE html>
<html><head><title>Resultado</title></head>
<body>
<h1>Consulta por nome</h1>
<table class="resultados">
  <thead><tr><th>NOME</th><th>CPF</th><th>NASCIMENTO</th></tr></thead>
  <tbody>
    <tr><td>MARIA DA SILVA</td><td>123.456.789-00</td><td>01/02/1980</td></tr>
    <tr><td>MARIA  DA   SILVA SANTOS</td><td>987.654.321-00</td><td>15/07/1992</td></tr>
  </tbody>
</table>
</body></html>`

const richReport = `<html><body>
<table>
  <tr><th>Nome</th><th>CPF</th><th>Nascimento</th><th>Idade</th><th>Sexo</th><th>Endereços</th><th>Cidades</th></tr>
  <tr><td>JOAO PEREIRA</td><td>111.222.333-44</td><td>10/10/1970</td><td>55</td><td>M</td>
      <td>RUA A, 10<br>RUA B, 20</td><td>SAO PAULO - SP<br/>CAMPINAS - SP</td></tr>
  <tr><td>JOAO PEREIRA LIMA</td><td>555.666.777-88</td><td>03/03/1985</td><td>40</td><td>M</td>
      <td></td><td>RECIFE - PE</td></tr>
  <tr><td colspan="7">Total: 2 registros</td></tr>
</table>
</body></html>`

func TestExtract_BasicTable(t *testing.T) {
	t.Parallel()

	recs := Extract(basicReport)
	require.Len(t, recs, 2)

	assert.Equal(t, "MARIA DA SILVA", recs[0].Name)
	assert.Equal(t, "123.456.789-00", recs[0].DocumentID)
	assert.Equal(t, "01/02/1980", recs[0].BirthDate)
	assert.Empty(t, recs[0].Age)

	assert.Equal(t, "MARIA DA SILVA SANTOS", recs[1].Name, "whitespace collapsed")
	assert.Equal(t, "15/07/1992", recs[1].BirthDate)
}

func TestExtract_RichTableSkipsMismatchedRows(t *testing.T) {
	t.Parallel()

	recs := Extract(richReport)
	require.Len(t, recs, 2)

	assert.Equal(t, "JOAO PEREIRA", recs[0].Name)
	assert.Equal(t, "55", recs[0].Age)
	assert.Equal(t, "M", recs[0].Sex)
	assert.Equal(t, "RUA A, 10; RUA B, 20", recs[0].Addresses)
	assert.Equal(t, "SAO PAULO - SP; CAMPINAS - SP", recs[0].Cities)

	assert.Equal(t, "JOAO PEREIRA LIMA", recs[1].Name)
	assert.Empty(t, recs[1].Addresses)
	assert.Equal(t, "RECIFE - PE", recs[1].Cities)
}

func TestExtract_PreservesRowOrder(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`<table><tr><th>NOME</th><th>CPF</th><th>NASCIMENTO</th></tr>`)
	names := []string{"ZULEICA", "ANA", "MARCOS", "BEATRIZ", "CARLOS"}
	for _, n := range names {
		b.WriteString("<tr><td>" + n + "</td><td>000</td><td>01/01/2000</td></tr>")
	}
	b.WriteString(`</table>`)

	recs := Extract(b.String())
	require.Len(t, recs, len(names))
	for i, n := range names {
		assert.Equal(t, n, recs[i].Name)
	}
}

func TestExtract_NonReportInput(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"empty":       "",
		"whitespace":  "   \n ",
		"plain text":  "not html at all",
		"error page":  `<html><body><h1>502 Bad Gateway</h1><p>nginx</p></body></html>`,
		"layout table": `<table><tr><td>Menu</td><td>Home</td><td>Contato</td></tr>` +
			`<tr><td>a</td><td>b</td><td>c</td></tr></table>`,
		"truncated":   `<table><tr><th>NOME</th><th>CPF`,
		"wrong width": `<table><tr><th>NOME</th><th>CPF</th></tr><tr><td>A</td><td>1</td></tr></table>`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			recs := Extract(in)
			assert.NotNil(t, recs)
			assert.Empty(t, recs)
		})
	}
}

func TestExtract_SkipsNestedTables(t *testing.T) {
	t.Parallel()

	doc := `<table><tr><td>
	  <table><tr><th>NOME</th><th>CPF</th><th>NASCIMENTO</th></tr>
	  <tr><td>ANA LIMA</td><td>1</td><td>02/02/1990</td></tr></table>
	</td></tr></table>`

	recs := Extract(doc)
	require.Len(t, recs, 1)
	assert.Equal(t, "ANA LIMA", recs[0].Name)
}

func TestFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "enderecos", fold("ENDEREÇOS"))
	assert.Equal(t, "nome", fold("Nome"))
}
