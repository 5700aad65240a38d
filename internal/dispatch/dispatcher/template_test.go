package dispatcher

import "testing"

const cTemplate = `//PREPEND BEGIN
#include <stdio.h>
//PREPEND END
//TEMPLATE BEGIN
int add(int a, int b) {
  // fill me in
}
//TEMPLATE END
//APPEND BEGIN
int main() { printf("%d\n", add(1, 2)); }
//APPEND END`

func TestParseProblemTemplate(t *testing.T) {
	t.Parallel()

	tpl := parseProblemTemplate(cTemplate)
	if tpl.Prepend != "#include <stdio.h>\n" {
		t.Fatalf("prepend = %q", tpl.Prepend)
	}
	if tpl.Append != "int main() { printf(\"%d\\n\", add(1, 2)); }\n" {
		t.Fatalf("append = %q", tpl.Append)
	}
}

func TestApplyTemplate(t *testing.T) {
	t.Parallel()

	code := "int add(int a, int b) { return a + b; }"
	got := applyTemplate(map[string]string{"C": cTemplate}, "C", code)
	want := "#include <stdio.h>\n\n" + code + "\n" + "int main() { printf(\"%d\\n\", add(1, 2)); }\n"
	if got != want {
		t.Fatalf("applyTemplate:\ngot  %q\nwant %q", got, want)
	}
}

func TestApplyTemplateNoTemplateForLanguage(t *testing.T) {
	t.Parallel()

	code := "print(1)"
	if got := applyTemplate(map[string]string{"C": cTemplate}, "Python3", code); got != code {
		t.Fatalf("code changed without a template: %q", got)
	}
}
