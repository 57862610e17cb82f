package gitrepo

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	sshSchemeConstant                    = "ssh"
	httpsSchemeConstant                  = "https"
	httpSchemeConstant                   = "http"
	fileSchemeConstant                   = "file"
	schemeSeparatorConstant              = "://"
	sshUserDelimiterConstant             = "@"
	sshPathDelimiterConstant             = ":"
	pathSeparatorConstant                = "/"
	gitSuffixConstant                    = ".git"
	remoteURLParseErrorTemplateConstant  = "%s: %s"
	invalidRemoteURLMessageConstant      = "invalid remote url"
	unknownProtocolMessageConstant       = "unsupported remote protocol"
	missingRepositoryNameMessageConstant = "remote url does not name a repository"
)

// RemoteProtocol enumerates supported git remote protocols.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol("ssh")
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol("https")
	RemoteProtocolHTTP  RemoteProtocol = RemoteProtocol("http")
	RemoteProtocolFile  RemoteProtocol = RemoteProtocol("file")
)

// RemoteURL represents a structured git remote URL. Path keeps every segment after the host,
// so collection-scoped server URLs such as /tfs/DefaultCollection/_git/Config survive intact.
type RemoteURL struct {
	Protocol RemoteProtocol
	Host     string
	Path     string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL converts a textual remote URL into a structured representation. Plain filesystem
// paths are accepted as file remotes.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	if strings.Contains(trimmedRemote, schemeSeparatorConstant) {
		return parseSchemeRemote(trimmedRemote)
	}
	if filepath.IsAbs(trimmedRemote) || strings.HasPrefix(trimmedRemote, ".") {
		return RemoteURL{Protocol: RemoteProtocolFile, Path: filepath.ToSlash(trimmedRemote)}, nil
	}
	return parseScpRemote(trimmedRemote)
}

func parseSchemeRemote(remote string) (RemoteURL, error) {
	parsedURL, parseError := url.Parse(remote)
	if parseError != nil {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	var protocol RemoteProtocol
	switch strings.ToLower(parsedURL.Scheme) {
	case sshSchemeConstant:
		protocol = RemoteProtocolSSH
	case httpsSchemeConstant:
		protocol = RemoteProtocolHTTPS
	case httpSchemeConstant:
		protocol = RemoteProtocolHTTP
	case fileSchemeConstant:
		return RemoteURL{Protocol: RemoteProtocolFile, Path: parsedURL.Path}, nil
	default:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: unknownProtocolMessageConstant}
	}

	if len(parsedURL.Host) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	return RemoteURL{Protocol: protocol, Host: parsedURL.Host, Path: strings.TrimPrefix(parsedURL.Path, pathSeparatorConstant)}, nil
}

// parseScpRemote handles the user@host:path shorthand.
func parseScpRemote(remote string) (RemoteURL, error) {
	hostAndPath := remote
	if userSplitIndex := strings.Index(remote, sshUserDelimiterConstant); userSplitIndex != -1 {
		hostAndPath = remote[userSplitIndex+1:]
	}
	pathSplitIndex := strings.Index(hostAndPath, sshPathDelimiterConstant)
	if pathSplitIndex <= 0 || pathSplitIndex == len(hostAndPath)-1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	return RemoteURL{
		Protocol: RemoteProtocolSSH,
		Host:     hostAndPath[:pathSplitIndex],
		Path:     strings.TrimPrefix(hostAndPath[pathSplitIndex+1:], pathSeparatorConstant),
	}, nil
}

// RepositoryName returns the final path segment without the .git suffix.
func (remote RemoteURL) RepositoryName() (string, error) {
	trimmedPath := strings.TrimRight(remote.Path, pathSeparatorConstant)
	name := strings.TrimSuffix(path.Base(trimmedPath), gitSuffixConstant)
	if len(trimmedPath) == 0 || len(name) == 0 || name == "." || name == pathSeparatorConstant {
		return "", RemoteURLParseError{Input: remote.Path, Message: missingRepositoryNameMessageConstant}
	}
	return name, nil
}
