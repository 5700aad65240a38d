package options

import "rivoj/internal/judgeapi"

var defaultEnv = []string{"LANG=en_US.UTF-8", "LANGUAGE=en_US:en", "LC_ALL=en_US.UTF-8"}

// DefaultLanguages is the built-in language set used until an administrator
// stores a custom one. Command templates use {src_path}, {exe_dir},
// {exe_path}, {max_memory}, {in_file_path} and {user_out_file_path}
// placeholders resolved worker-side.
func DefaultLanguages() map[string]Language {
	return map[string]Language{
		"C": {
			Config: judgeapi.LanguageConfig{
				Name: "c",
				Compile: &judgeapi.CompileConfig{
					SrcName:        "main.c",
					ExeName:        "main",
					MaxCPUTime:     3000,
					MaxRealTime:    5000,
					MaxMemory:      128 * 1024 * 1024,
					CompileCommand: "/usr/bin/gcc -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c99 {src_path} -lm -o {exe_path}",
				},
				Run: judgeapi.RunConfig{
					Command:     "{exe_path}",
					SeccompRule: "c_cpp",
					Env:         defaultEnv,
				},
			},
			SPJ: &judgeapi.SPJConfig{
				ExeName:     "spj-{spj_version}",
				Command:     "{exe_path} {in_file_path} {user_out_file_path}",
				SeccompRule: "c_cpp",
			},
			SPJCompile: &judgeapi.CompileConfig{
				SrcName:        "spj-{spj_version}.c",
				ExeName:        "spj-{spj_version}",
				MaxCPUTime:     3000,
				MaxRealTime:    5000,
				MaxMemory:      1024 * 1024 * 1024,
				CompileCommand: "/usr/bin/gcc -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c99 {src_path} -lm -o {exe_path}",
			},
		},
		"C++": {
			Config: judgeapi.LanguageConfig{
				Name: "cpp",
				Compile: &judgeapi.CompileConfig{
					SrcName:        "main.cpp",
					ExeName:        "main",
					MaxCPUTime:     3000,
					MaxRealTime:    5000,
					MaxMemory:      256 * 1024 * 1024,
					CompileCommand: "/usr/bin/g++ -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c++14 {src_path} -lm -o {exe_path}",
				},
				Run: judgeapi.RunConfig{
					Command:     "{exe_path}",
					SeccompRule: "c_cpp",
					Env:         defaultEnv,
				},
			},
			SPJ: &judgeapi.SPJConfig{
				ExeName:     "spj-{spj_version}",
				Command:     "{exe_path} {in_file_path} {user_out_file_path}",
				SeccompRule: "c_cpp",
			},
			SPJCompile: &judgeapi.CompileConfig{
				SrcName:        "spj-{spj_version}.cpp",
				ExeName:        "spj-{spj_version}",
				MaxCPUTime:     3000,
				MaxRealTime:    5000,
				MaxMemory:      1024 * 1024 * 1024,
				CompileCommand: "/usr/bin/g++ -DONLINE_JUDGE -O2 -w -fmax-errors=3 -std=c++14 {src_path} -lm -o {exe_path}",
			},
		},
		"Java": {
			Config: judgeapi.LanguageConfig{
				Name: "java",
				Compile: &judgeapi.CompileConfig{
					SrcName:        "Main.java",
					ExeName:        "Main",
					MaxCPUTime:     5000,
					MaxRealTime:    10000,
					MaxMemory:      -1,
					CompileCommand: "/usr/bin/javac {src_path} -d {exe_dir} -encoding UTF8",
				},
				Run: judgeapi.RunConfig{
					Command:              "/usr/bin/java -cp {exe_dir} -XX:MaxRAM={max_memory}k -Djava.security.policy==/etc/java_policy -Djava.awt.headless=true Main",
					SeccompRule:          "",
					Env:                  defaultEnv,
					MemoryLimitCheckOnly: true,
				},
			},
		},
		"Python3": {
			Config: judgeapi.LanguageConfig{
				Name: "python3",
				Compile: &judgeapi.CompileConfig{
					SrcName:        "solution.py",
					ExeName:        "solution.py",
					MaxCPUTime:     3000,
					MaxRealTime:    5000,
					MaxMemory:      128 * 1024 * 1024,
					CompileCommand: "/usr/bin/python3 -m py_compile {src_path}",
				},
				Run: judgeapi.RunConfig{
					Command:     "/usr/bin/python3 {exe_path}",
					SeccompRule: "general",
					Env:         append([]string{"PYTHONIOENCODING=UTF-8"}, defaultEnv...),
				},
			},
		},
	}
}
