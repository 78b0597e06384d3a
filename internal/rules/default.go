package rules

// Placeholders understood by the cheatsheet renderer. Anything else in braces
// is left for the operator to fill in.
const (
	PlaceholderHost = "{host}"
	PlaceholderPort = "{port}"
)

var defaultGeneral = []string{
	"Run a full TCP scan if not already done: nmap -p- -sC -sV -oA full {host}",
	"If a web service is found, fingerprint it and brute-force directories",
	"If credentials turn up anywhere, try them against SSH, RDP and WinRM",
}

var defaultRules = []Rule{
	{
		ID:       "smb",
		Match:    Pattern{Names: []string{"smb*", "microsoft-ds", "netbios-ssn"}, Ports: []int{139, 445}},
		Priority: 10,
		NextSteps: []string{
			"Enumerate SMB shares anonymously",
			"Check guest and null-session access to each share",
			"Note the Samba/Windows version and look up known vulnerabilities",
		},
		Commands: []string{
			"smbclient -L //{host} -N",
			"smbclient //{host}/share -N",
			"nxc smb {host} -u '' -p '' --shares",
		},
	},
	{
		ID:       "ftp",
		Match:    Pattern{Names: []string{"ftp*"}, Ports: []int{21}},
		Priority: 9,
		NextSteps: []string{
			"Try anonymous FTP login (user: anonymous)",
			"Mirror readable files and look for credentials or scripts",
		},
		Commands: []string{
			"ftp {host} {port}",
			"lftp -u anonymous,anonymous -p {port} {host}",
		},
	},
	{
		ID:       "nfs",
		Match:    Pattern{Names: []string{"nfs*", "rpcbind", "mountd"}, Ports: []int{111, 2049}},
		Priority: 9,
		NextSteps: []string{
			"List NFS exports",
			"Mount readable exports and check for writable paths or keys",
		},
		Commands: []string{
			"showmount -e {host}",
			"sudo mount -t nfs {host}:/export /mnt/nfs",
		},
	},
	{
		ID:       "redis",
		Match:    Pattern{Names: []string{"redis*"}, Ports: []int{6379}},
		Priority: 8,
		NextSteps: []string{
			"Check for unauthenticated Redis access",
			"If writable, consider the SSH authorized_keys write technique",
		},
		Commands: []string{
			"redis-cli -h {host} -p {port} info",
			"redis-cli -h {host} -p {port} config get dir",
		},
	},
	{
		ID:       "mysql",
		Match:    Pattern{Names: []string{"mysql*"}, Ports: []int{3306}},
		Priority: 7,
		NextSteps: []string{
			"Try default or discovered MySQL credentials (root with empty password)",
			"Check version, users and file read via LOAD_FILE if privileges allow",
		},
		Commands: []string{
			"mysql -h {host} -P {port} -u {user} -p",
		},
	},
	{
		ID:       "postgres",
		Match:    Pattern{Names: []string{"postgres*"}, Ports: []int{5432}},
		Priority: 7,
		NextSteps: []string{
			"Try default or discovered PostgreSQL credentials and enumerate databases",
		},
		Commands: []string{
			"psql -h {host} -p {port} -U {user} -W",
		},
	},
	{
		ID:       "mssql",
		Match:    Pattern{Names: []string{"ms-sql*", "mssql*"}, Ports: []int{1433}},
		Priority: 7,
		NextSteps: []string{
			"Check MSSQL for xp_cmdshell and login impersonation",
		},
		Commands: []string{
			"mssqlclient.py {user}@{host} -port {port} -windows-auth",
		},
	},
	{
		ID:       "https",
		Match:    Pattern{Names: []string{"https*", "ssl/http*"}, Ports: []int{443}},
		Priority: 6,
		NextSteps: []string{
			"Inspect the TLS certificate for hostnames and virtual hosts",
		},
		Commands: []string{
			"whatweb https://{host}:{port}",
			"httpx -title -status-code -ip -mc 200,301,302 -u https://{host}:{port}",
		},
	},
	{
		ID:       "winrm",
		Match:    Pattern{Names: []string{"winrm", "wsman"}, Ports: []int{5985, 5986}},
		Priority: 6,
		NextSteps: []string{
			"Try any discovered Windows credentials over WinRM",
		},
		Commands: []string{
			"evil-winrm -i {host} -P {port} -u {user} -p {pass}",
		},
	},
	{
		ID:       "http",
		Match:    Pattern{Names: []string{"http*", "ssl/http*"}, Ports: []int{80, 8000, 8080, 8888}},
		Priority: 5,
		NextSteps: []string{
			"Check for default credentials on web login",
			"Fingerprint the web stack and read robots.txt, /.git/ and backups",
			"Brute-force directories and virtual hosts",
		},
		Commands: []string{
			"whatweb http://{host}:{port}",
			"ffuf -u http://{host}:{port}/FUZZ -w /usr/share/seclists/Discovery/Web-Content/raft-medium-directories.txt -ic",
			"gobuster dir -u http://{host}:{port}/ -w /usr/share/wordlists/dirb/common.txt -k",
		},
	},
	{
		ID:       "smtp",
		Match:    Pattern{Names: []string{"smtp*"}, Ports: []int{25, 587}},
		Priority: 4,
		NextSteps: []string{
			"Enumerate mail users with VRFY/EXPN/RCPT",
		},
		Commands: []string{
			"smtp-user-enum -M VRFY -U users.txt -t {host} -p {port}",
		},
	},
	{
		ID:       "rdp",
		Match:    Pattern{Names: []string{"ms-wbt-server", "rdp"}, Ports: []int{3389}},
		Priority: 4,
		NextSteps: []string{
			"Try discovered credentials over RDP",
		},
		Commands: []string{
			"xfreerdp /v:{host}:{port} /u:{user} /p:{pass} /cert:ignore",
		},
	},
	{
		ID:       "ssh",
		Match:    Pattern{Names: []string{"ssh*"}, Ports: []int{22}},
		Priority: 3,
		NextSteps: []string{
			"Keep SSH for later: try default or reused credentials once you have them",
			"Check the banner version and whether key-based login is possible",
		},
		Commands: []string{
			"ssh {user}@{host} -p {port}",
			"ssh -i id_rsa {user}@{host} -p {port}",
		},
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(defaultRules, defaultGeneral)
	if err != nil {
		panic("rules: invalid built-in catalog: " + err.Error())
	}
	return c
}
